package bbolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hallpass-app/hallpass/internal/kv/bbolt"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledMessagePersistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "persistence_test.db")

	store, err := bbolt.NewTestStore(dbPath)
	require.NoError(t, err)

	m := model.NewEmail([]string{"parents@example.com"}, "Weekly Update", "<p>Hello</p>")
	m.Days = []model.Weekday{model.Monday}
	m.Attachments = []model.Attachment{{URL: "https://cdn.example.com/newsletter.pdf", Filename: "newsletter.pdf"}}
	require.NoError(t, store.AddMessage(ctx, m))
	require.NoError(t, store.Close())

	// Reopen the file and make sure the message survived.
	store, err = bbolt.NewTestStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	retrieved, err := store.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KindEmail, retrieved.Kind)
	assert.Equal(t, m.Days, retrieved.Days)
	assert.Equal(t, m.Attachments, retrieved.Attachments)
	assert.Nil(t, retrieved.Date)
}
