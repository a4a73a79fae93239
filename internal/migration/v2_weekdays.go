package migration

import (
	"context"
	"log/slog"

	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
)

func init() {
	Register(&WeekdayMigration{})
}

// WeekdayMigration rewrites weekday tags written as abbreviations or in lower
// case into the canonical upper case names the due queries match on.
type WeekdayMigration struct{}

// Version returns the migration version.
func (m *WeekdayMigration) Version() int {
	return 2
}

// Description returns the migration description.
func (m *WeekdayMigration) Description() string {
	return "Normalise weekday tags"
}

// Up runs the migration.
func (m *WeekdayMigration) Up(ctx context.Context, store kv.Storer) error {
	messages, err := store.ListMessages(ctx, "")
	if err != nil {
		return err
	}

	for _, msg := range messages {
		changed := false
		days := make([]model.Weekday, 0, len(msg.Days))
		for _, d := range msg.Days {
			parsed, err := model.ParseWeekday(string(d))
			if err != nil {
				slog.Warn("dropping unknown weekday", "message_id", msg.ID, "weekday", d)
				changed = true
				continue
			}
			if parsed != d {
				changed = true
			}
			days = append(days, parsed)
		}
		if !changed {
			continue
		}

		msg.Days = days
		if err := store.AddMessage(ctx, msg); err != nil {
			slog.Error("failed to update message", "message_id", msg.ID, "error", err)
		}
	}
	return nil
}
