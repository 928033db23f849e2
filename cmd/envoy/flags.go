package main

import (
	"strings"

	"github.com/mateo/envoy/internal/driver"
	"github.com/spf13/pflag"
)

// promptSentinel is what pflag hands to --unlock when no value follows it.
const promptSentinel = "\x00prompt"

// verbFlag is a boolean flag that selects a verb. All verb flags share one
// target, so the last one on the command line wins.
type verbFlag struct {
	target *driver.Verb
	verb   driver.Verb
}

func (f *verbFlag) String() string   { return "false" }
func (f *verbFlag) Type() string     { return "bool" }
func (f *verbFlag) IsBoolFlag() bool { return true }

func (f *verbFlag) Set(string) error {
	*f.target = f.verb
	return nil
}

// unlockFlag selects the unlock verb and optionally carries a passphrase.
type unlockFlag struct {
	inv *invocation
}

func (f *unlockFlag) String() string { return "" }
func (f *unlockFlag) Type() string   { return "string" }

func (f *unlockFlag) Set(value string) error {
	f.inv.verb = driver.VerbUnlock
	f.inv.passphraseSet = value != promptSentinel
	if f.inv.passphraseSet {
		f.inv.passphrase = value
	} else {
		f.inv.passphrase = ""
	}
	return nil
}

func addVerbFlag(flags *pflag.FlagSet, inv *invocation, verb driver.Verb, name, shorthand, usage string) {
	flag := flags.VarPF(&verbFlag{target: &inv.verb, verb: verb}, name, shorthand, usage)
	flag.NoOptDefVal = "true"
}

func addFlags(flags *pflag.FlagSet, inv *invocation) {
	addVerbFlag(flags, inv, driver.VerbForceAdd, "add", "a", "add private key identities")
	addVerbFlag(flags, inv, driver.VerbClear, "clear", "k", "force identities to expire (gpg-agent only)")
	addVerbFlag(flags, inv, driver.VerbKill, "kill", "K", "kill the running agent")
	addVerbFlag(flags, inv, driver.VerbList, "list", "l", "list fingerprints of all loaded identities")
	addVerbFlag(flags, inv, driver.VerbShPrint, "print", "p", "print out sh environmental arguments")
	addVerbFlag(flags, inv, driver.VerbFishPrint, "fish", "f", "print out fish environmental arguments")

	unlock := flags.VarPF(&unlockFlag{inv: inv}, "unlock", "u", "unlock the agent's keyring (gpg-agent only)")
	unlock.NoOptDefVal = promptSentinel

	flags.StringVarP(&inv.agentName, "agent", "t", "", "set the preferred agent to start")
}

// normalizeArgs rewrites an attached optional value such as -uhunter2 into
// -u=hunter2, which is the only attached form pflag accepts for flags whose
// value may be omitted. Values of flags that require one are left alone, and
// nothing after "--" is touched.
func normalizeArgs(flags *pflag.FlagSet, args []string) []string {
	out := make([]string, 0, len(args))
	skip := false
	for i, arg := range args {
		if skip {
			skip = false
			out = append(out, arg)
			continue
		}
		if arg == "--" {
			return append(out, args[i:]...)
		}
		switch {
		case strings.HasPrefix(arg, "--"):
			if f := flags.Lookup(arg[2:]); f != nil && f.NoOptDefVal == "" {
				skip = true
			}
		case len(arg) > 1 && arg[0] == '-':
			arg, skip = normalizeShorthands(flags, arg)
		}
		out = append(out, arg)
	}
	return out
}

// normalizeShorthands scans one cluster of short flags. It reports whether
// the next argument is the value of the cluster's last flag.
func normalizeShorthands(flags *pflag.FlagSet, arg string) (string, bool) {
	for i := 1; i < len(arg); i++ {
		f := flags.ShorthandLookup(arg[i : i+1])
		if f == nil {
			continue
		}
		rest := arg[i+1:]
		switch {
		case f.NoOptDefVal == "":
			return arg, rest == ""
		case f.Value.Type() == "bool":
		case rest == "" || rest[0] == '=':
			return arg, false
		default:
			return arg[:i+1] + "=" + rest, false
		}
	}
	return arg, false
}
