package sourcer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hallpass-app/hallpass/internal/datastore"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `
messages:
  - id: field-trip
    kind: sms
    to: ["+15551234567"]
    body: "Field trip forms are due Friday"
    date: "2024-01-05T15:00:00Z"
  - kind: email
    to: ["parents@example.com"]
    cc: ["office@example.com"]
    subject: Weekly Update
    body: "**This week** at school"
    format: markdown
    days: [MONDAY]
    attachments:
      - url: https://files.example.com/newsletter.pdf
`

func TestCompositeFetcher(t *testing.T) {
	// Test HTTP
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", "test-etag")
		fmt.Fprintln(w, "Hello, client")
	}))
	defer server.Close()

	fetcher := NewCompositeFetcher()
	fetcher.AddFetcher("http", NewHTTPFetcher(server.Client()))

	data, state, err := fetcher.Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.Equal(t, "Hello, client\n", string(data))
	assert.Equal(t, "test-etag", state)

	// Test File
	path := filepath.Join(t.TempDir(), "example.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Hello, file"), 0o644))

	fetcher.AddFetcher("file", NewFileFetcher())
	data, state, err = fetcher.Fetch(context.Background(), "file://"+path)
	assert.NoError(t, err)
	assert.Equal(t, "Hello, file", string(data))
	assert.Len(t, state, 64)

	// Test Unsupported Scheme
	_, _, err = fetcher.Fetch(context.Background(), "ftp://example.com")
	assert.Error(t, err)
}

func TestHTTPFetcher_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, _, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestYAMLParser(t *testing.T) {
	parser := NewYAMLParser()
	parser.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	source, err := parser.Parse("https://example.com/term.yaml", []byte(manifest))
	require.NoError(t, err)
	require.Len(t, source.Messages, 2)

	sms := source.Messages[0]
	assert.Equal(t, "field-trip", sms.ID)
	assert.Equal(t, model.GenerateShortID("field-trip"), sms.ShortID)
	assert.Equal(t, model.KindSMS, sms.Kind)
	assert.Equal(t, model.ModeOneTime, sms.Mode())
	require.NotNil(t, sms.Date)
	assert.True(t, sms.Date.Equal(time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC)))

	email := source.Messages[1]
	assert.NotEmpty(t, email.ID)
	assert.Equal(t, model.KindEmail, email.Kind)
	assert.Equal(t, []model.Weekday{model.Monday}, email.Days)
	assert.Equal(t, model.FormatMarkdown, email.Format)
	assert.Equal(t, []string{"office@example.com"}, email.CC)
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "https://files.example.com/newsletter.pdf", email.Attachments[0].URL)

	// IDs are stable across parses of the same URL.
	again, err := parser.Parse("https://example.com/term.yaml", []byte(manifest))
	require.NoError(t, err)
	assert.Equal(t, email.ID, again.Messages[1].ID)

	other, err := parser.Parse("https://example.com/other.yaml", []byte(manifest))
	require.NoError(t, err)
	assert.NotEqual(t, email.ID, other.Messages[1].ID)
}

func TestYAMLParser_Invalid(t *testing.T) {
	parser := NewYAMLParser()

	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "messages: [\n"},
		{"no messages", "other: true\n"},
		{"unknown kind", "messages:\n  - kind: fax\n    to: [a]\n    body: b\n    days: [MONDAY]\n"},
		{"no schedule", "messages:\n  - kind: sms\n    to: [\"+1555\"]\n    body: b\n"},
		{"bad weekday", "messages:\n  - kind: sms\n    to: [\"+1555\"]\n    body: b\n    days: [FUNDAY]\n"},
		{"two sms recipients", "messages:\n  - kind: sms\n    to: [\"+1555\", \"+1666\"]\n    body: b\n    days: [MONDAY]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse("file:///bad.yaml", []byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidSource)
		})
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMockStore()
	parser := NewYAMLParser()

	source, err := parser.Parse("https://example.com/term.yaml", []byte(manifest))
	require.NoError(t, err)

	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := Import(ctx, store, source, before)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Added: 2}, res)

	// Re-importing updates in place.
	source, err = parser.Parse("https://example.com/term.yaml", []byte(manifest))
	require.NoError(t, err)
	res, err = Import(ctx, store, source, before)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Updated: 2}, res)

	all, err := store.ListMessages(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Once sent and retired, a past one-time message is not re-added.
	require.NoError(t, store.Delete(ctx, model.KindSMS, "field-trip"))
	after := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	source, err = parser.Parse("https://example.com/term.yaml", []byte(manifest))
	require.NoError(t, err)
	res, err = Import(ctx, store, source, after)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Updated: 1, Expired: 1}, res)
}

func TestImport_IDMustMatchExactly(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMockStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	newsletter := model.NewEmail([]string{"parents@example.com"}, "Newsletter", "Hello")
	newsletter.Days = []model.Weekday{model.Monday}
	require.NoError(t, store.AddMessage(ctx, newsletter))

	reminder := model.NewSMS("+15551234567", "Reminder", nil)
	reminder.ID = newsletter.ShortID[:1]
	reminder.ShortID = model.GenerateShortID(reminder.ID)
	reminder.Days = []model.Weekday{model.Tuesday}

	res, err := Import(ctx, store, &Source{URL: "file:///m.yaml", Messages: []*model.ScheduledMessage{reminder}}, now)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Added: 1}, res)

	got, err := store.GetMessage(ctx, newsletter.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KindEmail, got.Kind)
	assert.Equal(t, newsletter.CreatedAt, got.CreatedAt)

	all, err := store.ListMessages(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImport_AmbiguousPrefixIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMockStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Store messages until two short IDs share a first character.
	seen := map[byte]bool{}
	var prefix string
	for prefix == "" {
		m := model.NewSMS("+15551234567", "Weekly", nil)
		m.Days = []model.Weekday{model.Friday}
		require.NoError(t, store.AddMessage(ctx, m))
		if seen[m.ShortID[0]] {
			prefix = m.ShortID[:1]
		}
		seen[m.ShortID[0]] = true
	}
	_, err := store.GetMessage(ctx, prefix)
	require.Error(t, err)

	m := model.NewSMS("+15557654321", "Bus late", nil)
	m.ID = prefix
	m.Days = []model.Weekday{model.Monday}
	res, err := Import(ctx, store, &Source{Messages: []*model.ScheduledMessage{m}}, now)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Added: 1}, res)
}
