// Package envoy talks to the per-user envoyd supervisor over its abstract
// unix socket.
package envoy

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Abstract socket names live in a flat kernel namespace keyed by name, so
// no filesystem object is ever created for them.

func socketName(uid int) string {
	return fmt.Sprintf("envoy-%d", uid)
}

// Address returns the supervisor endpoint for uid in the form understood by
// the net package, where a leading '@' stands for the abstract NUL byte.
func Address(uid int) string {
	return "@" + socketName(uid)
}

// Sockaddr returns the raw abstract address for uid.
func Sockaddr(uid int) *unix.SockaddrUnix {
	return &unix.SockaddrUnix{Name: Address(uid)}
}

// AddrLen is the number of sun_path bytes the address occupies: the leading
// NUL plus the name, without a terminator.
func AddrLen(uid int) int {
	return len(socketName(uid)) + 1
}

// Unlink exists for symmetry with filesystem sockets. Abstract addresses
// vanish with their last descriptor, so there is nothing to remove.
func Unlink() {}
