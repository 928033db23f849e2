package envoy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/mateo/envoy/internal/agent"
)

var (
	ErrAgentFailed  = errors.New("agent failed to start, check envoyd's log")
	ErrUnauthorized = errors.New("connection rejected, user is unauthorized to use this agent")
	ErrShortWrite   = errors.New("short write to envoyd")
	ErrShortRead    = errors.New("short read from envoyd, check envoyd's log")
	ErrBadReply     = errors.New("malformed reply from envoyd")
)

// Client fetches the caller's agent from the supervisor.
type Client interface {
	Agent(ctx context.Context, req agent.Request) (*agent.Reply, error)
}

type client struct {
	address string
	dialer  net.Dialer
}

// NewClient returns a client for the supervisor serving uid.
func NewClient(uid int) Client {
	return NewClientAt(Address(uid))
}

// NewClientAt returns a client for an explicit unix socket address.
func NewClientAt(address string) Client {
	return &client{address: address}
}

// Agent performs one request/reply round trip on a fresh connection.
func (c *client) Agent(ctx context.Context, req agent.Request) (*agent.Reply, error) {
	data, err := req.MarshalBinary()
	if err != nil {
		return nil, err
	}

	conn, err := c.dialer.DialContext(ctx, "unix", c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to envoyd, check envoyd's log: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	n, err := conn.Write(data)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if n != len(data) {
		return nil, ErrShortWrite
	}

	buf := make([]byte, agent.ReplySize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortRead
		}
		return nil, fmt.Errorf("reading reply: %w", err)
	}

	var reply agent.Reply
	if err := reply.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	if err := CheckReply(req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CheckReply turns a protocol-level refusal into an error and rejects
// replies that break the supervisor's guarantees.
func CheckReply(req agent.Request, reply *agent.Reply) error {
	switch reply.Status {
	case agent.StatusFailed:
		return ErrAgentFailed
	case agent.StatusBadUser:
		return ErrUnauthorized
	case agent.StatusStopped:
		return nil
	case agent.StatusRunning, agent.StatusStarted:
	default:
		return fmt.Errorf("%w: unknown status %d", ErrBadReply, int32(reply.Status))
	}

	if reply.Status == agent.StatusStarted && !req.Start {
		return fmt.Errorf("%w: agent started for a query-only request", ErrBadReply)
	}
	if _, ok := reply.Type.Entry(); !ok {
		return fmt.Errorf("%w: unresolved agent type %s", ErrBadReply, reply.Type)
	}
	if reply.Sock == "" {
		return fmt.Errorf("%w: empty agent socket", ErrBadReply)
	}
	if reply.Type == agent.GPGAgent && reply.GPG == "" {
		return fmt.Errorf("%w: gpg-agent reply without GPG_AGENT_INFO", ErrBadReply)
	}
	return nil
}
