package sms

import (
	"context"
	"sync"
)

// SendCall records the arguments of a call to MockClient.Send.
type SendCall struct {
	Body      string
	To        string
	MediaURLs []string
}

// MockClient is a mock implementation of the Client interface.
type MockClient struct {
	SendFunc func(ctx context.Context, body, to string, mediaURLs []string) (*Result, error)

	mu    sync.Mutex
	calls []SendCall
}

// NewMockClient returns a new mock client that accepts every message.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Send records the call and delegates to SendFunc if set.
func (m *MockClient) Send(ctx context.Context, body, to string, mediaURLs []string) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SendCall{Body: body, To: to, MediaURLs: mediaURLs})
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, body, to, mediaURLs)
	}
	return &Result{ID: "SM00000000000000000000000000000000", Status: "queued"}, nil
}

// SendCalls returns the calls made to Send so far.
func (m *MockClient) SendCalls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}
