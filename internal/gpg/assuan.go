// Package gpg is a minimal Assuan client for the handful of gpg-agent
// commands envoy needs: retargeting pinentry to the current terminal,
// listing keygrips and presetting passphrases.
package gpg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var ErrProtocol = errors.New("unexpected assuan response")

// Error is an ERR line returned by the agent.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gpg-agent error %d", e.Code)
	}
	return fmt.Sprintf("gpg-agent error %d: %s", e.Code, e.Message)
}

// Response collects everything the agent sent before its final OK.
type Response struct {
	Data   []byte
	Status []string // S lines without the "S " prefix
}

type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// SocketPath extracts the socket from a GPG_AGENT_INFO value of the form
// path:pid:protocol. Only the path is used.
func SocketPath(info string) (string, error) {
	path, _, _ := strings.Cut(info, ":")
	if path == "" {
		return "", fmt.Errorf("no socket in GPG_AGENT_INFO %q", info)
	}
	return path, nil
}

// Dial connects to the agent named by a GPG_AGENT_INFO value and consumes
// its greeting.
func Dial(ctx context.Context, info string) (*Client, error) {
	path, err := SocketPath(info)
	if err != nil {
		return nil, err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to gpg-agent: %w", err)
	}

	c := &Client{conn: conn, r: bufio.NewReader(conn)}
	if _, err := c.readResponse(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gpg-agent greeting: %w", err)
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Transact sends one command line and waits for OK or ERR.
func (c *Client) Transact(command string) (*Response, error) {
	if _, err := c.conn.Write([]byte(command + "\n")); err != nil {
		return nil, fmt.Errorf("sending %s: %w", verb(command), err)
	}
	return c.readResponse()
}

func (c *Client) readResponse() (*Response, error) {
	var resp Response
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading from gpg-agent: %w", err)
		}
		line = strings.TrimSuffix(line, "\n")

		switch {
		case line == "OK" || strings.HasPrefix(line, "OK "):
			return &resp, nil
		case line == "ERR" || strings.HasPrefix(line, "ERR "):
			return nil, parseError(line)
		case strings.HasPrefix(line, "D "):
			resp.Data = append(resp.Data, unescape(line[2:])...)
		case strings.HasPrefix(line, "S "):
			resp.Status = append(resp.Status, line[2:])
		case line == "" || strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "INQUIRE "):
			// Nothing we send asks for more data; cancel and let the
			// agent answer with ERR.
			if _, err := c.conn.Write([]byte("CAN\n")); err != nil {
				return nil, fmt.Errorf("cancelling inquiry: %w", err)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrProtocol, line)
		}
	}
}

func parseError(line string) *Error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "ERR"))
	codeText, message, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return &Error{Message: rest}
	}
	return &Error{Code: code, Message: message}
}

// unescape decodes the %XX escapes Assuan uses in data lines.
func unescape(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if b, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				out = append(out, byte(b))
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return out
}

func verb(command string) string {
	v, _, _ := strings.Cut(command, " ")
	return v
}
