package shell

import (
	"strings"
	"testing"

	"github.com/mateo/envoy/internal/agent"
)

func TestWrite_POSIX_SSHAgent(t *testing.T) {
	reply := &agent.Reply{
		Pid:    4321,
		Type:   agent.SSHAgent,
		Status: agent.StatusRunning,
		Sock:   "/run/user/1000/ssh-XXXX/agent.4320",
	}

	var out strings.Builder
	if err := Write(&out, POSIX, reply); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	want := "export SSH_AUTH_SOCK='/run/user/1000/ssh-XXXX/agent.4320'\n" +
		"export SSH_AGENT_PID='4321'\n"
	if out.String() != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, out.String())
	}
}

func TestWrite_POSIX_GPGAgentFirst(t *testing.T) {
	reply := &agent.Reply{
		Pid:  1234,
		Type: agent.GPGAgent,
		Sock: "/run/user/1000/gnupg/S.gpg-agent.ssh",
		GPG:  "/run/user/1000/gnupg/S.gpg-agent:1234:1",
	}

	var out strings.Builder
	Write(&out, POSIX, reply)
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out.String())
	}
	if lines[0] != "export GPG_AGENT_INFO='/run/user/1000/gnupg/S.gpg-agent:1234:1'" {
		t.Errorf("unexpected first line %q", lines[0])
	}
}

func TestWrite_Fish(t *testing.T) {
	reply := &agent.Reply{Pid: 7, Type: agent.SSHAgent, Sock: "/tmp/agent.6"}

	var out strings.Builder
	if err := Write(&out, Fish, reply); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	want := "set -x SSH_AUTH_SOCK '/tmp/agent.6';\nset -x SSH_AGENT_PID '7';\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestWrite_Stable(t *testing.T) {
	reply := &agent.Reply{Pid: 7, Type: agent.SSHAgent, Sock: "/tmp/agent.6"}

	var first, second strings.Builder
	Write(&first, POSIX, reply)
	Write(&second, POSIX, reply)
	if first.String() != second.String() {
		t.Errorf("expected identical output, got %q and %q", first.String(), second.String())
	}
}
