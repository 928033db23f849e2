package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mateo/envoy/internal/agent"
	"github.com/mateo/envoy/internal/gpg"
	"github.com/mateo/envoy/internal/secret"
)

// defaultTTL asks gpg-agent to use its configured cache lifetime.
const defaultTTL = -1

// unlock presets the passphrase for every key gpg-agent knows about. Each
// key gets exactly one attempt; a rejected key is reported and the rest
// are still tried.
func (d *Driver) unlock(ctx context.Context, reply *agent.Reply, passphrase []byte) error {
	conn, err := d.DialGPG(ctx, reply.GPG)
	if err != nil {
		return fmt.Errorf("failed to open connection to gpg-agent: %w", err)
	}
	defer conn.Close()

	var pass *secret.Buffer
	if passphrase == nil {
		pass, err = d.Prompt()
	} else {
		pass, err = secret.NewFromBytes(passphrase)
	}
	if errors.Is(err, secret.ErrEmpty) {
		return ErrEmptyPassphrase
	}
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	defer pass.Close()

	keygrips, err := conn.KeyInfo()
	if err != nil {
		return err
	}

	failed := 0
	for _, keygrip := range keygrips {
		err := conn.PresetPassphrase(keygrip, defaultTTL, pass.Bytes())
		if err == nil {
			continue
		}
		var agentErr *gpg.Error
		if !errors.As(err, &agentErr) {
			return err
		}
		d.Logger.Warn("failed to unlock key", "fingerprint", keygrip, "error", agentErr)
		failed++
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrUnlockFailed, failed, len(keygrips))
	}
	return nil
}
