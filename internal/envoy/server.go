package envoy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/mateo/envoy/internal/agent"
	"golang.org/x/sys/unix"
)

// Peer identifies the process on the other end of a supervisor connection.
type Peer struct {
	Pid int
	Uid int
}

// Handler answers a single request from peer.
type Handler func(peer Peer, req agent.Request) agent.Reply

// Server speaks the supervisor side of the wire protocol: one fixed-size
// request and one fixed-size reply per connection. It owns no agents;
// whatever the Handler returns is sent back verbatim.
type Server struct {
	handler Handler
	logger  *slog.Logger
}

func NewServer(handler Handler, logger *slog.Logger) *Server {
	return &Server{handler: handler, logger: logger}
}

// Serve accepts connections until ln is closed.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		// Errors are per connection; the client sees a short read.
		if err := s.handle(conn); err != nil {
			s.logger.Warn("connection failed", "error", err)
		}
	}
}

func (s *Server) handle(conn net.Conn) error {
	defer conn.Close()

	buf := make([]byte, agent.RequestSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return fmt.Errorf("reading request: %w", err)
	}
	var req agent.Request
	if err := req.UnmarshalBinary(buf); err != nil {
		return err
	}

	peer, err := peerOf(conn)
	if err != nil {
		return err
	}

	data, err := s.handler(peer, req).MarshalBinary()
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}

func peerOf(conn net.Conn) (Peer, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Peer{}, fmt.Errorf("not a unix connection: %T", conn)
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return Peer{}, err
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Peer{}, err
	}
	if credErr != nil {
		return Peer{}, fmt.Errorf("reading peer credentials: %w", credErr)
	}
	return Peer{Pid: int(cred.Pid), Uid: int(cred.Uid)}, nil
}
