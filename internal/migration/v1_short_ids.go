package migration

import (
	"context"
	"log/slog"

	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
)

func init() {
	Register(&ShortIDMigration{})
}

// ShortIDMigration backfills the ShortID field for scheduled messages.
type ShortIDMigration struct{}

// Version returns the migration version.
func (m *ShortIDMigration) Version() int {
	return 1
}

// Description returns the migration description.
func (m *ShortIDMigration) Description() string {
	return "Backfill ShortID for scheduled messages"
}

// Up runs the migration.
func (m *ShortIDMigration) Up(ctx context.Context, store kv.Storer) error {
	slog.Info("listing scheduled messages to backfill short IDs")
	messages, err := store.ListMessages(ctx, "")
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if msg.ShortID != "" {
			continue
		}
		msg.ShortID = model.GenerateShortID(msg.ID)
		if err := store.AddMessage(ctx, msg); err != nil {
			slog.Error("failed to update message", "message_id", msg.ID, "error", err)
			continue
		}
		slog.Info("backfilled short ID", "message_id", msg.ID, "short_id", msg.ShortID)
	}

	return nil
}
