package poller

import (
	"context"
	"errors"
	"testing"

	"github.com/hallpass-app/hallpass/internal/sourcer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSourcer is a mock implementation of the sourcer.Sourcer interface for testing.
type mockSourcer struct {
	sources map[string]*sourcer.Source
	states  map[string]string
	err     error
}

func (m *mockSourcer) Source(ctx context.Context, url string) (*sourcer.Source, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	source, ok := m.sources[url]
	if !ok {
		return nil, "", errors.New("source not found")
	}
	state, ok := m.states[url]
	if !ok {
		return nil, "", errors.New("state not found")
	}
	return source, state, nil
}

func TestPoller_Poll_AllSourcesFail(t *testing.T) {
	mockSourcer := &mockSourcer{
		err: errors.New("failed to fetch source"),
	}
	poller := New(mockSourcer)
	urls := []string{"http://example.com/source1.yaml", "http://example.com/source2.yaml"}

	sources, err := poller.Poll(context.Background(), urls)

	assert.Error(t, err)
	assert.Nil(t, sources)
}

func TestPoller_Poll_ReturnsOnlyChanged(t *testing.T) {
	one := &sourcer.Source{URL: "http://example.com/one.yaml"}
	two := &sourcer.Source{URL: "http://example.com/two.yaml"}
	ms := &mockSourcer{
		sources: map[string]*sourcer.Source{one.URL: one, two.URL: two},
		states:  map[string]string{one.URL: "a", two.URL: "b"},
	}
	poller := New(ms)
	urls := []string{one.URL, two.URL}

	sources, err := poller.Poll(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, []*sourcer.Source{one, two}, sources)

	sources, err = poller.Poll(context.Background(), urls)
	require.NoError(t, err)
	assert.Empty(t, sources)

	ms.states[two.URL] = "c"
	sources, err = poller.Poll(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, []*sourcer.Source{two}, sources)
}

func TestPoller_Poll_PartialFailure(t *testing.T) {
	one := &sourcer.Source{URL: "http://example.com/one.yaml"}
	ms := &mockSourcer{
		sources: map[string]*sourcer.Source{one.URL: one},
		states:  map[string]string{one.URL: "a"},
	}
	poller := New(ms)

	sources, err := poller.Poll(context.Background(), []string{one.URL, "http://example.com/missing.yaml"})
	require.NoError(t, err)
	assert.Equal(t, []*sourcer.Source{one}, sources)
}
