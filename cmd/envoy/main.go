package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mateo/envoy/internal/agent"
	"github.com/mateo/envoy/internal/config"
	"github.com/mateo/envoy/internal/driver"
	"github.com/mateo/envoy/internal/envoy"
	"github.com/mateo/envoy/internal/version"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const usageText = `usage: %s [options] [key ...]
Options:
 -h, --help            display this help
 -v, --version         display version
 -a, --add             add private key identities
 -k, --clear           force identities to expire (gpg-agent only)
 -K, --kill            kill the running agent
 -l, --list            list fingerprints of all loaded identities
 -u, --unlock=[PASS]   unlock the agent's keyring (gpg-agent only)
 -p, --print           print out sh environmental arguments
 -f, --fish            print out fish environmental arguments
 -t, --agent=AGENT     set the preferred agent to start
`

// invocation is the parsed command line.
type invocation struct {
	verb          driver.Verb
	agentName     string
	passphrase    string
	passphraseSet bool
	args          []string
}

func main() {
	root := newRootCmd(os.Args[1:], os.Stdout, os.Stderr, runEnvoy)
	err := root.ExecuteContext(context.Background())
	envoy.Unlink()
	if err != nil {
		colored := term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == ""
		printError(os.Stderr, colored, err)
		os.Exit(1)
	}
}

// printError writes a fatal diagnostic. color decides on its own from
// stdout, so the caller says whether the destination is a terminal.
func printError(w io.Writer, colored bool, err error) {
	prefix := color.New(color.FgRed)
	if colored {
		prefix.EnableColor()
	} else {
		prefix.DisableColor()
	}
	fmt.Fprintf(w, "%s %v\n", prefix.Sprint("envoy:"), err)
}

func newRootCmd(args []string, stdout, stderr io.Writer, run func(cmd *cobra.Command, inv *invocation) error) *cobra.Command {
	inv := &invocation{}
	cmd := &cobra.Command{
		Use:           "envoy [options] [key ...]",
		Short:         "Locate, start and manage your ssh-agent or gpg-agent",
		Version:       version.Info(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.args = args
			return run(cmd, inv)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		fmt.Fprintf(c.ErrOrStderr(), usageText, c.Name())
		return nil
	})
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		fmt.Fprintf(c.OutOrStdout(), usageText, c.Name())
	})
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.Usage()
		return err
	})

	addFlags(cmd.Flags(), inv)
	cmd.SetArgs(normalizeArgs(cmd.Flags(), args))
	return cmd
}

// options resolves the invocation against the configuration. Agent names
// are checked here, before the supervisor is contacted.
func (inv *invocation) options(cfg config.Config) (driver.Options, error) {
	opts := driver.Options{Verb: inv.verb, Kind: agent.Default, Keys: inv.args}

	name := inv.agentName
	if name == "" {
		name = cfg.Agent
	}
	if name != "" {
		kind, err := agent.Parse(name)
		if err != nil {
			return opts, err
		}
		opts.Kind = kind
	}

	if inv.verb == driver.VerbUnlock {
		switch {
		case inv.passphraseSet:
			opts.Passphrase = []byte(inv.passphrase)
		case len(inv.args) > 0:
			// "-u PASS" parses as a bare -u followed by a positional.
			opts.Passphrase = []byte(inv.args[0])
			opts.Keys = inv.args[1:]
		}
	}
	return opts, nil
}

func runEnvoy(cmd *cobra.Command, inv *invocation) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	opts, err := inv.options(cfg)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, level)
	d := newSystemDriver(cfg, logger, cmd.OutOrStdout(), os.Stderr)
	return d.Run(cmd.Context(), opts)
}
