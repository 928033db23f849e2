package tty

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// openPTY returns the master and slave ends of a fresh pseudo-terminal.
func openPTY(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		t.Skipf("no pseudo-terminals available: %v", err)
	}
	t.Cleanup(func() { master.Close() })

	if err := unix.IoctlSetPointerInt(int(master.Fd()), unix.TIOCSPTLCK, 0); err != nil {
		t.Fatalf("unlocking pty failed: %v", err)
	}
	n, err := unix.IoctlGetInt(int(master.Fd()), unix.TIOCGPTN)
	if err != nil {
		t.Fatalf("TIOCGPTN failed: %v", err)
	}
	slave, err := os.OpenFile(fmt.Sprintf("/dev/pts/%d", n), os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		t.Fatalf("opening pty slave failed: %v", err)
	}
	t.Cleanup(func() { slave.Close() })
	return master, slave
}

func lflag(t *testing.T, f *os.File) uint32 {
	t.Helper()
	termios, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		t.Fatalf("TCGETS failed: %v", err)
	}
	return termios.Lflag
}

// typeOnceEchoIsOff writes input to the master once the slave has echo
// disabled, so the TCSETSF flush cannot discard it.
func typeOnceEchoIsOff(t *testing.T, master, slave *os.File, input string) {
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			termios, err := unix.IoctlGetTermios(int(slave.Fd()), unix.TCGETS)
			if err == nil && termios.Lflag&unix.ECHO == 0 {
				master.Write([]byte(input))
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
}

func TestTerminal_DisableEchoAndRestore(t *testing.T) {
	_, slave := openPTY(t)
	original := lflag(t, slave)
	if original&unix.ECHO == 0 {
		t.Fatal("expected a fresh pty to echo")
	}

	term := NewTerminal(int(slave.Fd()))
	if err := term.DisableEcho(); err != nil {
		t.Fatalf("DisableEcho failed: %v", err)
	}
	if got := lflag(t, slave); got&unix.ECHO != 0 {
		t.Errorf("expected ECHO cleared, got lflag %#x", got)
	}

	if err := term.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if err := term.Restore(); err != nil {
		t.Fatalf("second Restore failed: %v", err)
	}
	if got := lflag(t, slave); got != original {
		t.Errorf("expected lflag %#x after restore, got %#x", original, got)
	}
}

func TestReadPassphrase_RestoresTerminal(t *testing.T) {
	master, slave := openPTY(t)
	original := lflag(t, slave)

	typeOnceEchoIsOff(t, master, slave, "hunter2\n")
	var prompt strings.Builder
	buffer, err := ReadPassphrase(slave, &prompt)
	if err != nil {
		t.Fatalf("ReadPassphrase failed: %v", err)
	}
	defer buffer.Close()

	if string(buffer.Bytes()) != "hunter2" {
		t.Errorf("expected hunter2, got %q", buffer.Bytes())
	}
	if prompt.String() != "Password: \n" {
		t.Errorf("unexpected prompt output %q", prompt.String())
	}
	if got := lflag(t, slave); got != original {
		t.Errorf("expected lflag %#x after read, got %#x", original, got)
	}
}

func TestReadPassphrase_RestoresTerminalOnEOF(t *testing.T) {
	master, slave := openPTY(t)
	original := lflag(t, slave)

	// ^D on an empty canonical line reads as end of file.
	typeOnceEchoIsOff(t, master, slave, "\x04")
	if _, err := ReadPassphrase(slave, &strings.Builder{}); err == nil {
		t.Fatal("expected error on end of file")
	}
	if got := lflag(t, slave); got != original {
		t.Errorf("expected lflag %#x after failed read, got %#x", original, got)
	}
}

func TestReadPassphrase_RestoresTerminalOnEmptyLine(t *testing.T) {
	master, slave := openPTY(t)
	original := lflag(t, slave)

	typeOnceEchoIsOff(t, master, slave, "\n")
	if _, err := ReadPassphrase(slave, &strings.Builder{}); err == nil {
		t.Fatal("expected error on empty passphrase")
	}
	if got := lflag(t, slave); got != original {
		t.Errorf("expected lflag %#x after empty read, got %#x", original, got)
	}
}
