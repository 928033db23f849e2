package envoy

import (
	"context"

	"github.com/mateo/envoy/internal/agent"
)

// MockClient implements the Client interface for testing.
type MockClient struct {
	Reply    agent.Reply
	AgentFn  func(ctx context.Context, req agent.Request) (agent.Reply, error)
	AgentErr error
	Requests []agent.Request
}

func NewMockClient(reply agent.Reply) *MockClient {
	return &MockClient{Reply: reply}
}

func (m *MockClient) Agent(ctx context.Context, req agent.Request) (*agent.Reply, error) {
	m.Requests = append(m.Requests, req)
	if m.AgentErr != nil {
		return nil, m.AgentErr
	}

	reply := m.Reply
	if m.AgentFn != nil {
		var err error
		if reply, err = m.AgentFn(ctx, req); err != nil {
			return nil, err
		}
	}
	if err := CheckReply(req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
