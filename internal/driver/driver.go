// Package driver decides what envoy does once the supervisor has answered:
// export the agent into the environment, print it for a shell, hand off to
// ssh-add, signal the agent, or unlock gpg-agent keys.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mateo/envoy/internal/agent"
	"github.com/mateo/envoy/internal/envoy"
	"github.com/mateo/envoy/internal/gpg"
	"github.com/mateo/envoy/internal/keys"
	"github.com/mateo/envoy/internal/secret"
	"github.com/mateo/envoy/internal/shell"
	"golang.org/x/sys/unix"
)

type Verb int

const (
	VerbNone Verb = iota
	VerbShPrint
	VerbFishPrint
	VerbForceAdd
	VerbClear
	VerbKill
	VerbList
	VerbUnlock
)

// Start reports whether the verb wants a live agent. Clear and Kill only
// query, so they never cause an agent to be spawned.
func (v Verb) Start() bool {
	return v != VerbClear && v != VerbKill
}

var (
	ErrNotGPG       = errors.New("only gpg-agent supports this operation")
	ErrUnlockFailed = errors.New("failed to unlock keys")

	ErrEmptyPassphrase = errors.New("empty passphrase, no keys unlocked")
)

type Options struct {
	Verb Verb
	Kind agent.Kind
	// Passphrase for VerbUnlock. Nil means prompt on the terminal.
	Passphrase []byte
	// Keys are bare names or paths for VerbForceAdd.
	Keys []string
}

// GPG is the subset of the Assuan client the driver uses.
type GPG interface {
	UpdateStartupTTY(tty gpg.TTY) error
	KeyInfo() ([]string, error)
	PresetPassphrase(keygrip string, ttl int, passphrase []byte) error
	Close() error
}

// DialGPG connects to gpg-agent through the real Assuan client.
func DialGPG(ctx context.Context, info string) (GPG, error) {
	client, err := gpg.Dial(ctx, info)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Driver holds every side effect as a field so each can be replaced in
// tests. Exec must not return on success.
type Driver struct {
	Client envoy.Client
	Stdout io.Writer
	Logger *slog.Logger
	SSHAdd string
	TTY    gpg.TTY

	Setenv   func(key, value string) error
	Exec     func(path string, argv []string) error
	LookPath func(file string) (string, error)
	Kill     func(pid int, sig unix.Signal) error
	Home     func() (string, error)
	DialGPG  func(ctx context.Context, info string) (GPG, error)
	Prompt   func() (*secret.Buffer, error)
}

// Run performs one envoy invocation.
func (d *Driver) Run(ctx context.Context, opts Options) error {
	req := agent.Request{Kind: opts.Kind, Start: opts.Verb.Start()}
	d.Logger.Debug("requesting agent", "kind", req.Kind, "start", req.Start)

	reply, err := d.Client.Agent(ctx, req)
	if err != nil {
		return err
	}
	d.Logger.Debug("agent reply", "pid", reply.Pid, "type", reply.Type, "status", reply.Status)

	// Nothing is running and nothing was started, so there is neither an
	// endpoint to export nor a process to act on.
	if reply.Status == agent.StatusStopped {
		return nil
	}

	if req.Start {
		if err := d.sourceEnv(ctx, reply); err != nil {
			return err
		}
	}

	switch opts.Verb {
	case VerbShPrint:
		if err := shell.Write(d.Stdout, shell.POSIX, reply); err != nil {
			return err
		}
	case VerbFishPrint:
		if err := shell.Write(d.Stdout, shell.Fish, reply); err != nil {
			return err
		}
	}

	switch opts.Verb {
	case VerbNone, VerbShPrint, VerbFishPrint:
		// A running agent already holds keys and gpg-agent loads its own.
		if reply.Status == agent.StatusRunning || reply.Type == agent.GPGAgent {
			return nil
		}
		return d.addKeys(nil)
	case VerbForceAdd:
		return d.addKeys(opts.Keys)
	case VerbClear:
		if reply.Type != agent.GPGAgent {
			return ErrNotGPG
		}
		return d.signal(reply.Pid, unix.SIGHUP)
	case VerbKill:
		return d.signal(reply.Pid, unix.SIGTERM)
	case VerbList:
		path, err := d.LookPath("ssh-add")
		if err != nil {
			return fmt.Errorf("failed to launch ssh-add: %w", err)
		}
		return d.exec(path, []string{"ssh-add", "-l"})
	case VerbUnlock:
		if reply.Type != agent.GPGAgent {
			return ErrNotGPG
		}
		return d.unlock(ctx, reply, opts.Passphrase)
	default:
		return fmt.Errorf("unknown verb %d", opts.Verb)
	}
}

// sourceEnv exports the agent into this process so anything exec'd next
// inherits it, and points gpg-agent's prompts at this terminal.
func (d *Driver) sourceEnv(ctx context.Context, reply *agent.Reply) error {
	if reply.Type == agent.GPGAgent {
		conn, err := d.DialGPG(ctx, reply.GPG)
		if err != nil {
			return fmt.Errorf("failed to open connection to gpg-agent: %w", err)
		}
		err = conn.UpdateStartupTTY(d.TTY)
		conn.Close()
		if err != nil {
			return err
		}
		if err := d.Setenv("GPG_AGENT_INFO", reply.GPG); err != nil {
			return err
		}
	}
	return d.Setenv("SSH_AUTH_SOCK", reply.Sock)
}

func (d *Driver) addKeys(names []string) error {
	var home string
	if len(names) > 0 {
		var err error
		if home, err = d.Home(); err != nil {
			return err
		}
	}
	argv := keys.AddArgv(d.SSHAdd, home, names)
	return d.exec(argv[0], argv)
}

func (d *Driver) exec(path string, argv []string) error {
	d.Logger.Debug("exec", "path", path, "argv", argv)
	if err := d.Exec(path, argv); err != nil {
		return fmt.Errorf("failed to launch ssh-add: %w", err)
	}
	return nil
}

func (d *Driver) signal(pid int, sig unix.Signal) error {
	d.Logger.Debug("signalling agent", "pid", pid, "signal", sig)
	if err := d.Kill(pid, sig); err != nil {
		return fmt.Errorf("failed to signal agent %d: %w", pid, err)
	}
	return nil
}
