package gpg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// TTY describes the terminal pinentry should prompt on.
type TTY struct {
	Name    string
	Type    string
	Display string
}

// CurrentTTY describes the terminal attached to stdin, if any, along with
// TERM and DISPLAY from the environment.
func CurrentTTY() TTY {
	tty := TTY{
		Type:    os.Getenv("TERM"),
		Display: os.Getenv("DISPLAY"),
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if name, err := os.Readlink("/proc/self/fd/0"); err == nil {
			tty.Name = name
		}
	}
	return tty
}

func (t TTY) options() []string {
	var opts []string
	if t.Name != "" {
		opts = append(opts, "ttyname="+t.Name)
	}
	if t.Type != "" {
		opts = append(opts, "ttytype="+t.Type)
	}
	if t.Display != "" {
		opts = append(opts, "display="+t.Display)
	}
	return opts
}

// UpdateStartupTTY points the agent's prompts at tty. The agent may reject
// individual OPTIONs it does not know; only the final command must succeed.
func (c *Client) UpdateStartupTTY(tty TTY) error {
	for _, opt := range tty.options() {
		if _, err := c.Transact("OPTION " + opt); err != nil {
			var agentErr *Error
			if !errors.As(err, &agentErr) {
				return err
			}
		}
	}
	if _, err := c.Transact("UPDATESTARTUPTTY"); err != nil {
		return fmt.Errorf("UPDATESTARTUPTTY: %w", err)
	}
	return nil
}

// KeyInfo returns the keygrips the agent knows about, in the order listed.
func (c *Client) KeyInfo() ([]string, error) {
	resp, err := c.Transact("KEYINFO --list")
	if err != nil {
		return nil, fmt.Errorf("KEYINFO: %w", err)
	}

	var grips []string
	for _, status := range resp.Status {
		fields := strings.Fields(status)
		if len(fields) >= 2 && fields[0] == "KEYINFO" {
			grips = append(grips, fields[1])
		}
	}
	return grips, nil
}

// PresetPassphrase caches passphrase for keygrip. A ttl of -1 uses the
// agent's default. The command line holding the hex-encoded passphrase is
// zeroed once written.
func (c *Client) PresetPassphrase(keygrip string, ttl int, passphrase []byte) error {
	line := fmt.Appendf(nil, "PRESET_PASSPHRASE %s %d %X\n", keygrip, ttl, passphrase)
	_, err := c.conn.Write(line)
	clear(line)
	if err != nil {
		return fmt.Errorf("sending PRESET_PASSPHRASE: %w", err)
	}

	if _, err := c.readResponse(); err != nil {
		return fmt.Errorf("PRESET_PASSPHRASE %s: %w", keygrip, err)
	}
	return nil
}
