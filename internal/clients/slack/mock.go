package slack

import "context"

// MockClient is a mock implementation of the Client interface for testing.
type MockClient struct {
	PostMessageFunc  func(ctx context.Context, channel, text string) (string, string, error)
	GetChannelIDFunc func(ctx context.Context, channelName string) (string, error)

	PostMessageCount int
	Posted           []string
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		PostMessageFunc: func(ctx context.Context, channel, text string) (string, string, error) {
			return "C1234567890", "1234567890.123456", nil
		},
		GetChannelIDFunc: func(ctx context.Context, channelName string) (string, error) {
			return "C1234567890", nil
		},
	}
}

// PostMessage calls the PostMessageFunc.
func (m *MockClient) PostMessage(ctx context.Context, channel, text string) (string, string, error) {
	m.PostMessageCount++
	m.Posted = append(m.Posted, text)
	return m.PostMessageFunc(ctx, channel, text)
}

// GetChannelID calls the GetChannelIDFunc.
func (m *MockClient) GetChannelID(ctx context.Context, channelName string) (string, error) {
	return m.GetChannelIDFunc(ctx, channelName)
}
