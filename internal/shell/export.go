// Package shell renders an agent reply as lines a shell can eval.
package shell

import (
	"fmt"
	"io"
	"strconv"

	"github.com/mateo/envoy/internal/agent"
)

type Dialect int

const (
	POSIX Dialect = iota
	Fish
)

// Variables lists the environment a caller should export for reply, in
// output order. GPG_AGENT_INFO only appears for gpg-agent.
func Variables(reply *agent.Reply) [][2]string {
	var vars [][2]string
	if reply.Type == agent.GPGAgent {
		vars = append(vars, [2]string{"GPG_AGENT_INFO", reply.GPG})
	}
	return append(vars,
		[2]string{"SSH_AUTH_SOCK", reply.Sock},
		[2]string{"SSH_AGENT_PID", strconv.Itoa(reply.Pid)},
	)
}

// Write emits the export lines for reply. Values come from the supervisor
// and are wrapped in single quotes without further escaping.
func Write(w io.Writer, dialect Dialect, reply *agent.Reply) error {
	for _, kv := range Variables(reply) {
		var err error
		switch dialect {
		case Fish:
			_, err = fmt.Fprintf(w, "set -x %s '%s';\n", kv[0], kv[1])
		default:
			_, err = fmt.Fprintf(w, "export %s='%s'\n", kv[0], kv[1])
		}
		if err != nil {
			return err
		}
	}
	return nil
}
