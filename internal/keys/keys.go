// Package keys turns bare key names into the argv handed to ssh-add.
package keys

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// DefaultSSHAdd is where ssh-add is expected when not configured.
const DefaultSSHAdd = "/usr/bin/ssh-add"

// Home returns the home directory from the passwd entry of the real uid,
// ignoring $HOME.
func Home() (string, error) {
	u, err := user.LookupId(strconv.Itoa(os.Getuid()))
	if err != nil {
		return "", fmt.Errorf("failed to lookup passwd entry: %w", err)
	}
	if u.HomeDir == "" {
		return "", fmt.Errorf("failed to lookup passwd entry: no home directory for uid %s", u.Uid)
	}
	return u.HomeDir, nil
}

// Resolve keeps names that exist as paths and maps the rest to
// home/.ssh/<name>.
func Resolve(home string, names []string) []string {
	paths := make([]string, len(names))
	for i, name := range names {
		if unix.Access(name, unix.F_OK) == nil {
			paths[i] = name
			continue
		}
		paths[i] = filepath.Join(home, ".ssh", name)
	}
	return paths
}

// AddArgv builds the full ssh-add argv, including the end-of-options
// marker so key names are never mistaken for flags.
func AddArgv(sshAdd, home string, names []string) []string {
	argv := []string{sshAdd, "--"}
	return append(argv, Resolve(home, names)...)
}
