package sourcer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/hallpass-app/hallpass/internal/scheduler"
)

// ImportResult counts what Import did with a manifest.
type ImportResult struct {
	Added   int
	Updated int
	Expired int
}

// Import writes the manifest's messages to store. One-time messages that
// are already due and absent from the store are not re-added, since they
// were most likely sent and retired by an earlier run.
func Import(ctx context.Context, store kv.Storer, s *Source, now time.Time) (*ImportResult, error) {
	res := &ImportResult{}
	for _, m := range s.Messages {
		existing, err := lookup(ctx, store, m.ID)
		switch {
		case err == nil:
			if existing.Kind != m.Kind {
				if err := store.Delete(ctx, existing.Kind, existing.ID); err != nil {
					return res, fmt.Errorf("failed to replace message %s: %w", m.ID, err)
				}
			}
			m.CreatedAt = existing.CreatedAt
			res.Updated++
		case isNotFound(err):
			if m.Mode() == model.ModeOneTime && scheduler.DueOneTime(m, now) {
				slog.Debug("skipping expired one-time message", "message_id", m.ID, "source", s.URL)
				res.Expired++
				continue
			}
			res.Added++
		default:
			return res, err
		}

		if err := store.AddMessage(ctx, m); err != nil {
			return res, fmt.Errorf("failed to store message %s: %w", m.ID, err)
		}
	}
	return res, nil
}

// lookup finds the stored message with exactly id. GetMessage also matches
// short ID prefixes, which must never resolve a manifest id to an unrelated
// message.
func lookup(ctx context.Context, store kv.Storer, id string) (*model.ScheduledMessage, error) {
	existing, err := store.GetMessage(ctx, id)
	if errors.Is(err, kv.ErrAmbiguousID) {
		return nil, fmt.Errorf("%w: message with id '%s'", kv.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if existing.ID != id {
		return nil, fmt.Errorf("%w: message with id '%s'", kv.ErrNotFound, id)
	}
	return existing, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound)
}
