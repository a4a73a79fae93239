package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallpass-app/hallpass/internal/datastore"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/hallpass-app/hallpass/internal/sourcer"
)

func TestScheduledCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	t.Run("one-time sms", func(t *testing.T) {
		store, _, _ := useMocks(t)
		viper.Set("dispatcher.timezone", "UTC")

		var out bytes.Buffer
		err := doScheduledCreate(ctx, &out, model.KindSMS, createOptions{
			to:   []string{"+15551234567"},
			body: "School is closed today",
			date: "2024-01-01 09:00",
		}, now)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "once at 2024-01-01T09:00:00Z")

		messages, err := store.ListMessages(ctx, model.KindSMS)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, []string{"+15551234567"}, messages[0].To)
		assert.Equal(t, model.ModeOneTime, messages[0].Mode())
	})

	t.Run("recurring email", func(t *testing.T) {
		store, _, _ := useMocks(t)

		var out bytes.Buffer
		err := doScheduledCreate(ctx, &out, model.KindEmail, createOptions{
			to:      []string{"parents@example.com"},
			cc:      []string{"office@example.com"},
			subject: "Lunch menu",
			body:    "**Pizza** on Friday",
			format:  "Markdown",
			days:    "mon,fri",
		}, now)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "every MONDAY, FRIDAY")

		messages, err := store.ListMessages(ctx, model.KindEmail)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, model.FormatMarkdown, messages[0].Format)
		assert.Equal(t, []string{"office@example.com"}, messages[0].CC)
		assert.Equal(t, []model.Weekday{model.Monday, model.Friday}, messages[0].Days)
	})

	t.Run("date and days warns", func(t *testing.T) {
		useMocks(t)
		viper.Set("dispatcher.timezone", "UTC")

		var out bytes.Buffer
		err := doScheduledCreate(ctx, &out, model.KindSMS, createOptions{
			to:   []string{"+15551234567"},
			body: "hi",
			date: "2023-12-31",
			days: "monday",
		}, now)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "in the past")
		assert.Contains(t, out.String(), "sent once")
	})

	t.Run("invalid input", func(t *testing.T) {
		testCases := []struct {
			name string
			kind model.Kind
			opts createOptions
		}{
			{"sms with two recipients", model.KindSMS, createOptions{to: []string{"+1", "+2"}, body: "x", days: "monday"}},
			{"no schedule", model.KindEmail, createOptions{to: []string{"a@example.com"}, body: "x"}},
			{"bad weekday", model.KindEmail, createOptions{to: []string{"a@example.com"}, body: "x", days: "someday"}},
			{"bad date", model.KindSMS, createOptions{to: []string{"+1"}, body: "x", date: "tomorrow"}},
			{"bad format", model.KindEmail, createOptions{to: []string{"a@example.com"}, body: "x", days: "monday", format: "rtf"}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				store, _, _ := useMocks(t)
				err := doScheduledCreate(ctx, &bytes.Buffer{}, tc.kind, tc.opts, now)
				assert.Error(t, err)

				messages, _ := store.ListMessages(ctx, "")
				assert.Empty(t, messages)
			})
		}
	})
}

func seed(t *testing.T, store *datastore.MockStore) (*model.ScheduledMessage, *model.ScheduledMessage) {
	t.Helper()
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	once := model.NewSMS("+15551234567", "Early dismissal at noon", nil)
	once.Date = &at
	weekly := model.NewEmail([]string{"parents@example.com"}, "Weekly newsletter", "See you soon")
	weekly.Days = []model.Weekday{model.Friday}

	require.NoError(t, store.AddMessage(context.Background(), once))
	require.NoError(t, store.AddMessage(context.Background(), weekly))
	return once, weekly
}

func TestScheduledList(t *testing.T) {
	store, _, _ := useMocks(t)
	once, weekly := seed(t, store)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, doScheduledList(context.Background(), store, &out, "", now, time.UTC))

	s := out.String()
	assert.Contains(t, s, once.ShortID)
	assert.Contains(t, s, weekly.ShortID)
	assert.Contains(t, s, "Weekly newsletter")
	assert.Contains(t, s, "every FRIDAY")
	assert.Less(t, bytes.Index(out.Bytes(), []byte(once.ShortID)), bytes.Index(out.Bytes(), []byte(weekly.ShortID)))

	out.Reset()
	require.NoError(t, doScheduledList(context.Background(), store, &out, model.KindEmail, now, time.UTC))
	assert.NotContains(t, out.String(), once.ShortID)
}

func TestScheduledListEmpty(t *testing.T) {
	store, _, _ := useMocks(t)

	var out bytes.Buffer
	require.NoError(t, doScheduledList(context.Background(), store, &out, "", time.Now(), time.UTC))
	assert.Equal(t, "No scheduled messages.\n", out.String())
}

func TestScheduledDelete(t *testing.T) {
	store, _, _ := useMocks(t)
	once, weekly := seed(t, store)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, doScheduledDelete(ctx, store, &out, once.ShortID))
	assert.Contains(t, out.String(), "Deleted sms "+once.ShortID)

	_, err := store.GetMessage(ctx, once.ID)
	assert.Error(t, err)
	_, err = store.GetMessage(ctx, weekly.ID)
	assert.NoError(t, err)

	assert.Error(t, doScheduledDelete(ctx, store, &out, "nope"))
}

func TestScheduledExportImport(t *testing.T) {
	store, _, _ := useMocks(t)
	once, weekly := seed(t, store)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, doScheduledExport(ctx, store, &out, ""))
	assert.Contains(t, out.String(), "messages:")
	assert.Contains(t, out.String(), once.ID)

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0644))

	target := datastore.NewMockStore()
	s := sourcer.NewSourcer(sourcer.NewDefaultFetcher(nil), sourcer.NewYAMLParser())

	// Before the one-time message is due, both messages come across.
	var summary bytes.Buffer
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, doScheduledImport(ctx, target, s, &summary, []string{path}, now))
	assert.Contains(t, summary.String(), "2 added, 0 updated, 0 expired")

	got, err := target.GetMessage(ctx, weekly.ID)
	require.NoError(t, err)
	assert.Equal(t, weekly.Subject, got.Subject)
	assert.Equal(t, weekly.Days, got.Days)

	got, err = target.GetMessage(ctx, once.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Date)
	assert.True(t, once.Date.Equal(*got.Date))

	// Importing again updates in place.
	summary.Reset()
	require.NoError(t, doScheduledImport(ctx, target, s, &summary, []string{path}, now))
	assert.Contains(t, summary.String(), "0 added, 2 updated")
}

func TestSourceURL(t *testing.T) {
	u, err := sourceURL("https://example.com/m.yaml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/m.yaml", u)

	u, err = sourceURL("manifest.yaml")
	require.NoError(t, err)
	assert.Regexp(t, `^file:///.*/manifest\.yaml$`, u)
}
