package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hallpass-app/hallpass/internal/kv"
)

// Migration defines the interface for a database migration.
type Migration interface {
	Version() int
	Description() string
	Up(ctx context.Context, store kv.Storer) error
}

var migrations []Migration

// Register adds a new migration to the list of available migrations.
func Register(m Migration) {
	migrations = append(migrations, m)
}

// Pending returns the registered migrations newer than the store's schema version.
func Pending(ctx context.Context, store kv.Storer) ([]Migration, error) {
	currentVersion, err := store.GetSchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version() < sorted[j].Version()
	})

	var pending []Migration
	for _, m := range sorted {
		if m.Version() > currentVersion {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Apply runs all pending migrations against the datastore.
func Apply(ctx context.Context, store kv.Storer) error {
	slog.Info("applying database migrations")

	pending, err := Pending(ctx, store)
	if err != nil {
		return err
	}

	for _, m := range pending {
		slog.Info("running migration", "version", m.Version(), "description", m.Description())
		if err := m.Up(ctx, store); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if err := store.SetSchemaVersion(ctx, m.Version()); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		slog.Info("migration successful", "version", m.Version())
	}

	slog.Info("migrations are up to date")
	return nil
}
