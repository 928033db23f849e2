package main

import (
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/mateo/envoy/internal/config"
	"github.com/mateo/envoy/internal/driver"
	"github.com/mateo/envoy/internal/envoy"
	"github.com/mateo/envoy/internal/gpg"
	"github.com/mateo/envoy/internal/keys"
	"github.com/mateo/envoy/internal/secret"
	"github.com/mateo/envoy/internal/tty"
	"golang.org/x/sys/unix"
)

// execReplace replaces the current process entirely (unix exec). ssh-add
// inherits the controlling tty and everything exported with os.Setenv.
func execReplace(path string, argv []string) error {
	return unix.Exec(path, argv, os.Environ())
}

func newSystemDriver(cfg config.Config, logger *slog.Logger, stdout, prompt io.Writer) *driver.Driver {
	return &driver.Driver{
		Client:   envoy.NewClient(os.Getuid()),
		Stdout:   stdout,
		Logger:   logger,
		SSHAdd:   cfg.SSHAdd,
		TTY:      gpg.CurrentTTY(),
		Setenv:   os.Setenv,
		Exec:     execReplace,
		LookPath: exec.LookPath,
		Kill:     unix.Kill,
		Home:     keys.Home,
		DialGPG:  driver.DialGPG,
		Prompt: func() (*secret.Buffer, error) {
			return tty.ReadPassphrase(os.Stdin, prompt)
		},
	}
}
