// Package tty reads a passphrase from the terminal with local echo off.
package tty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/mateo/envoy/internal/secret"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// MaxPassphrase bounds what fits in a single Assuan line once hex encoded.
const MaxPassphrase = 448

var ErrTooLong = errors.New("passphrase too long")

// Terminal owns one echo-off acquisition of a terminal. Restore puts the
// snapshot back at most once and is a no-op if echo was never disabled.
type Terminal struct {
	fd    int
	saved *term.State
	once  sync.Once
	err   error
}

func NewTerminal(fd int) *Terminal {
	return &Terminal{fd: fd}
}

// DisableEcho snapshots the terminal and clears ECHO, flushing pending
// input the way TCSAFLUSH does.
func (t *Terminal) DisableEcho() error {
	state, err := term.GetState(t.fd)
	if err != nil {
		return fmt.Errorf("failed to get terminal attributes: %w", err)
	}

	termios, err := unix.IoctlGetTermios(t.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get terminal attributes: %w", err)
	}
	termios.Lflag &^= unix.ECHO

	t.saved = state
	if err := unix.IoctlSetTermios(t.fd, unix.TCSETSF, termios); err != nil {
		return fmt.Errorf("failed to set terminal attributes: %w", err)
	}
	return nil
}

func (t *Terminal) Restore() error {
	if t.saved == nil {
		return nil
	}
	t.once.Do(func() {
		t.err = term.Restore(t.fd, t.saved)
	})
	return t.err
}

// restoreOnSignal restores the terminal if the process is interrupted
// mid-prompt, then lets the signal take its default course.
func (t *Terminal) restoreOnSignal() (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM, unix.SIGHUP, unix.SIGQUIT)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			t.Restore()
			signal.Reset(sig)
			unix.Kill(os.Getpid(), sig.(unix.Signal))
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// ReadPassphrase prompts on out and reads one line from in with echo
// disabled. The terminal is restored before returning on every path.
func ReadPassphrase(in *os.File, out io.Writer) (*secret.Buffer, error) {
	fmt.Fprint(out, "Password: ")

	t := NewTerminal(int(in.Fd()))
	if err := t.DisableEcho(); err != nil {
		return nil, err
	}
	defer t.Restore()
	stop := t.restoreOnSignal()
	defer stop()

	line, err := readLine(in)
	fmt.Fprintln(out)
	if err != nil {
		return nil, err
	}
	if err := t.Restore(); err != nil {
		secret.Zero(line)
		return nil, fmt.Errorf("failed to restore terminal attributes: %w", err)
	}
	return secret.NewFromBytes(line)
}

// readLine reads up to a newline one byte at a time so nothing past the
// passphrase is consumed, and never reallocates the backing array.
func readLine(r io.Reader) ([]byte, error) {
	line := make([]byte, 0, MaxPassphrase)
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				break
			}
			if len(line) == cap(line) {
				secret.Zero(line)
				return nil, ErrTooLong
			}
			line = append(line, b[0])
		}
		if err == io.EOF {
			if len(line) == 0 {
				return nil, fmt.Errorf("failed to read password: %w", io.ErrUnexpectedEOF)
			}
			break
		}
		if err != nil {
			secret.Zero(line)
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line[n-1] = 0
		line = line[:n-1]
	}
	return line, nil
}
