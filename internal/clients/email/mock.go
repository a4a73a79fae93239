package email

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of the Client interface.
type MockClient struct {
	SendFunc func(ctx context.Context, msg *Message) (*Result, error)

	mu    sync.Mutex
	calls []*Message
}

// NewMockClient returns a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Send is the mock implementation of the Send method.
func (m *MockClient) Send(ctx context.Context, msg *Message) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msg)
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return &Result{ID: "mock-message-id", Status: "202"}, nil
}

// SendCalls returns the messages passed to Send so far.
func (m *MockClient) SendCalls() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Message, len(m.calls))
	copy(out, m.calls)
	return out
}
