package agent

import (
	"errors"
	"fmt"
)

// Kind identifies an agent flavour. Default asks the supervisor to pick
// whichever agent it considers default for the calling user.
type Kind int32

const (
	SSHAgent Kind = iota
	GPGAgent
	Default

	// LastAgent is the number of concrete kinds in the registry.
	LastAgent = Default
)

// Status is the supervisor's verdict on a request. The numeric values are
// part of the wire format and must not be reordered.
type Status int32

const (
	StatusRunning Status = iota
	StatusStarted
	StatusStopped
	StatusFailed
	StatusBadUser
)

var ErrUnknownAgent = errors.New("unknown agent")

// Entry is the immutable registry record for one concrete agent kind.
type Entry struct {
	Name string
	Argv []string
	// SocketFlag, when set, names the option that precedes the socket path
	// the supervisor picks for the agent.
	SocketFlag string
}

// Command is the full argv that launches the agent on socket.
func (e Entry) Command(socket string) []string {
	argv := append([]string(nil), e.Argv...)
	if e.SocketFlag != "" {
		argv = append(argv, e.SocketFlag, socket)
	}
	return argv
}

var registry = [LastAgent]Entry{
	SSHAgent: {
		Name:       "ssh-agent",
		Argv:       []string{"/usr/bin/ssh-agent", "-D"},
		SocketFlag: "-a",
	},
	GPGAgent: {
		Name: "gpg-agent",
		Argv: []string{"/usr/bin/gpg-agent", "--daemon", "--enable-ssh-support"},
	},
}

// Lookup maps an agent name to its kind with a case-sensitive scan of the
// registry. Unknown names report false and LastAgent.
func Lookup(name string) (Kind, bool) {
	for i, entry := range registry {
		if entry.Name == name {
			return Kind(i), true
		}
	}
	return LastAgent, false
}

// Parse is Lookup with an error for callers that surface usage mistakes.
func Parse(name string) (Kind, error) {
	kind, ok := Lookup(name)
	if !ok {
		return kind, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return kind, nil
}

// Entry returns the registry entry for a concrete kind.
func (k Kind) Entry() (Entry, bool) {
	if k < 0 || k >= LastAgent {
		return Entry{}, false
	}
	entry := registry[k]
	entry.Argv = append([]string(nil), entry.Argv...)
	return entry, true
}

func (k Kind) String() string {
	if entry, ok := k.Entry(); ok {
		return entry.Name
	}
	if k == Default {
		return "default"
	}
	return fmt.Sprintf("agent(%d)", int32(k))
}

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStarted:
		return "started"
	case StatusStopped:
		return "stopped"
	case StatusFailed:
		return "failed"
	case StatusBadUser:
		return "bad-user"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Live reports whether the reply carries a usable agent endpoint.
func (s Status) Live() bool {
	return s == StatusRunning || s == StatusStarted
}

// Request asks the supervisor for the caller's agent. Start=false is a
// query that never spawns anything.
type Request struct {
	Kind  Kind
	Start bool
}

// Reply is the supervisor's answer. Sock and GPG are only meaningful when
// Status is live.
type Reply struct {
	Pid    int
	Type   Kind
	Status Status
	Sock   string // SSH_AUTH_SOCK
	GPG    string // GPG_AGENT_INFO, empty for ssh-agent
}
