package gpg

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
)

// MockAgent is a scripted gpg-agent listening on a filesystem socket, for
// testing. It knows a fixed set of keygrips and fails presets for the ones
// listed as rejected.
type MockAgent struct {
	Path string

	keygrips []string
	reject   map[string]bool
	ln       net.Listener

	mu       sync.Mutex
	commands []string
}

func NewMockAgent(path string, keygrips []string, reject ...string) (*MockAgent, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	m := &MockAgent{
		Path:     path,
		keygrips: keygrips,
		reject:   make(map[string]bool),
		ln:       ln,
	}
	for _, grip := range reject {
		m.reject[grip] = true
	}
	go m.serve()
	return m, nil
}

// Info returns a GPG_AGENT_INFO value pointing at the mock.
func (m *MockAgent) Info() string {
	return m.Path + ":0:1"
}

// Commands returns every command line received, across connections.
func (m *MockAgent) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func (m *MockAgent) Close() error {
	return m.ln.Close()
}

func (m *MockAgent) serve() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			return
		}
		go m.handle(conn)
	}
}

func (m *MockAgent) handle(conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	defer w.Flush()

	fmt.Fprint(w, "OK Pleased to meet you\n")
	w.Flush()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		m.mu.Lock()
		m.commands = append(m.commands, line)
		m.mu.Unlock()

		command, args, _ := strings.Cut(line, " ")
		switch command {
		case "OPTION", "UPDATESTARTUPTTY", "RESET":
			fmt.Fprint(w, "OK\n")
		case "KEYINFO":
			for _, grip := range m.keygrips {
				fmt.Fprintf(w, "S KEYINFO %s D - - - P - - -\n", grip)
			}
			fmt.Fprint(w, "OK\n")
		case "PRESET_PASSPHRASE":
			grip, _, _ := strings.Cut(args, " ")
			if m.reject[grip] {
				fmt.Fprint(w, "ERR 67108903 Not supported <GPG Agent>\n")
			} else {
				fmt.Fprint(w, "OK\n")
			}
		case "BYE":
			fmt.Fprint(w, "OK closing connection\n")
			return
		default:
			fmt.Fprint(w, "ERR 536871187 Unknown IPC command <User defined source 1>\n")
		}
		w.Flush()
	}
}
