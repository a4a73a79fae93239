package migration_test

import (
	"context"
	"testing"

	"github.com/hallpass-app/hallpass/internal/datastore"
	"github.com/hallpass-app/hallpass/internal/migration"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMockStore()

	legacy := &model.ScheduledMessage{
		ID:   "legacy-1",
		Kind: model.KindSMS,
		To:   []string{"+15551234567"},
		Body: "Reminder",
		Days: []model.Weekday{"mon", "Friday", "someday"},
	}
	require.NoError(t, store.AddMessage(ctx, legacy))

	require.NoError(t, migration.Apply(ctx, store))

	version, err := store.GetSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	got, err := store.GetMessage(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, model.GenerateShortID("legacy-1"), got.ShortID)
	assert.Equal(t, []model.Weekday{model.Monday, model.Friday}, got.Days)

	pending, err := migration.Pending(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
