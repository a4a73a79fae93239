package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS scheduled_messages (
    id          TEXT PRIMARY KEY,
    short_id    TEXT NOT NULL,
    kind        TEXT NOT NULL,
    recipients  TEXT[] NOT NULL,
    cc          TEXT[],
    bcc         TEXT[],
    subject     TEXT NOT NULL DEFAULT '',
    body        TEXT NOT NULL,
    format      TEXT NOT NULL DEFAULT '',
    media_urls  TEXT[],
    attachments JSONB,
    send_at     TIMESTAMPTZ,
    days        TEXT[],
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS scheduled_messages_kind_send_at ON scheduled_messages (kind, send_at);
CREATE INDEX IF NOT EXISTS scheduled_messages_days ON scheduled_messages USING GIN (days);

CREATE TABLE IF NOT EXISTS deliveries (
    id          TEXT PRIMARY KEY,
    short_id    TEXT NOT NULL,
    message_id  TEXT NOT NULL,
    kind        TEXT NOT NULL,
    recipients  TEXT[] NOT NULL,
    status      TEXT NOT NULL,
    provider_id TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    recurring   BOOLEAN NOT NULL DEFAULT FALSE,
    sent_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
`

const messageColumns = `id, short_id, kind, recipients, cc, bcc, subject, body, format, media_urls, attachments, send_at, days, created_at`

// Store manages the persistence of scheduled messages in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore connects to the database at dsn and creates the schema if needed.
func NewStore(dsn string) (kv.Storer, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open db: %w", kv.ErrDBOperationFailed, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping db: %w", kv.ErrDBOperationFailed, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %w", kv.ErrDBOperationFailed, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindDueOneTime returns messages of kind whose date is at or before now.
func (s *Store) FindDueOneTime(ctx context.Context, kind model.Kind, now time.Time) ([]*model.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE kind = $1 AND send_at <= $2 ORDER BY send_at`
	return s.queryMessages(ctx, query, string(kind), now)
}

// FindDueRecurring returns messages of kind whose days contain weekday.
func (s *Store) FindDueRecurring(ctx context.Context, kind model.Kind, weekday model.Weekday) ([]*model.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE kind = $1 AND $2 = ANY(days) ORDER BY created_at`
	return s.queryMessages(ctx, query, string(kind), string(weekday))
}

// Delete removes a scheduled message. Deleting a missing row affects nothing and is not an error.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_messages WHERE kind = $1 AND id = $2`, string(kind), id); err != nil {
		return fmt.Errorf("%w: failed to delete scheduled message: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}

// AddMessage stores a message, replacing any message with the same ID.
func (s *Store) AddMessage(ctx context.Context, m *model.ScheduledMessage) error {
	m.EnsureID()
	m.Normalize()

	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal attachments: %w", kv.ErrSerializationFailed, err)
	}

	query := `
		INSERT INTO scheduled_messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			recipients = EXCLUDED.recipients,
			cc = EXCLUDED.cc,
			bcc = EXCLUDED.bcc,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			format = EXCLUDED.format,
			send_at = EXCLUDED.send_at,
			days = EXCLUDED.days
	`
	_, err = s.db.ExecContext(ctx, query,
		m.ID,
		m.ShortID,
		string(m.Kind),
		pq.Array(m.To),
		pq.Array(m.CC),
		pq.Array(m.BCC),
		m.Subject,
		m.Body,
		string(m.Format),
		pq.Array(m.MediaURLs),
		attachments,
		m.Date,
		pq.Array(daysToStrings(m.Days)),
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to put scheduled message: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}

// GetMessage retrieves a message by its full ID, or failing that by short ID prefix.
func (s *Store) GetMessage(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	messages, err := s.queryMessages(ctx, `SELECT `+messageColumns+` FROM scheduled_messages WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		messages, err = s.queryMessages(ctx, `SELECT `+messageColumns+` FROM scheduled_messages WHERE short_id LIKE $1 || '%' LIMIT 2`, id)
		if err != nil {
			return nil, err
		}
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: message with id '%s'", kv.ErrNotFound, id)
	}
	if len(messages) > 1 {
		return nil, fmt.Errorf("%w: message with short id '%s'", kv.ErrAmbiguousID, id)
	}
	return messages[0], nil
}

// ListMessages returns the messages of kind, or all messages when kind is empty.
func (s *Store) ListMessages(ctx context.Context, kind model.Kind) ([]*model.ScheduledMessage, error) {
	if kind == "" {
		return s.queryMessages(ctx, `SELECT `+messageColumns+` FROM scheduled_messages ORDER BY created_at`)
	}
	return s.queryMessages(ctx, `SELECT `+messageColumns+` FROM scheduled_messages WHERE kind = $1 ORDER BY created_at`, string(kind))
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]*model.ScheduledMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query scheduled messages: %w", kv.ErrDBOperationFailed, err)
	}
	defer rows.Close()

	var messages []*model.ScheduledMessage
	for rows.Next() {
		var (
			m           model.ScheduledMessage
			kind        string
			format      string
			days        []string
			attachments []byte
			sendAt      sql.NullTime
		)
		err := rows.Scan(
			&m.ID,
			&m.ShortID,
			&kind,
			pq.Array(&m.To),
			pq.Array(&m.CC),
			pq.Array(&m.BCC),
			&m.Subject,
			&m.Body,
			&format,
			pq.Array(&m.MediaURLs),
			&attachments,
			&sendAt,
			pq.Array(&days),
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan scheduled message: %w", kv.ErrSerializationFailed, err)
		}
		m.Kind = model.Kind(kind)
		m.Format = model.Format(format)
		if sendAt.Valid {
			date := sendAt.Time
			m.Date = &date
		}
		for _, d := range days {
			m.Days = append(m.Days, model.Weekday(d))
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
				return nil, fmt.Errorf("%w: failed to unmarshal attachments: %w", kv.ErrSerializationFailed, err)
			}
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate over scheduled messages: %w", kv.ErrDBOperationFailed, err)
	}
	return messages, nil
}

func daysToStrings(days []model.Weekday) []string {
	if days == nil {
		return nil
	}
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

// AddDelivery records a send attempt.
func (s *Store) AddDelivery(ctx context.Context, d *model.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.ShortID = model.GenerateShortID(d.ID)

	query := `
		INSERT INTO deliveries (id, short_id, message_id, kind, recipients, status, provider_id, error, recurring, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ShortID, d.MessageID, string(d.Kind), pq.Array(d.To), string(d.Status), d.ProviderID, d.Error, d.Recurring, d.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to add delivery: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}

// ListDeliveries retrieves all delivery records, oldest first.
func (s *Store) ListDeliveries(ctx context.Context) ([]*model.Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, short_id, message_id, kind, recipients, status, provider_id, error, recurring, sent_at
		FROM deliveries ORDER BY sent_at
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query deliveries: %w", kv.ErrDBOperationFailed, err)
	}
	defer rows.Close()

	var deliveries []*model.Delivery
	for rows.Next() {
		var d model.Delivery
		var kind, status string
		if err := rows.Scan(&d.ID, &d.ShortID, &d.MessageID, &kind, pq.Array(&d.To), &status, &d.ProviderID, &d.Error, &d.Recurring, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: failed to scan delivery: %w", kv.ErrSerializationFailed, err)
		}
		d.Kind = model.Kind(kind)
		d.Status = model.DeliveryStatus(status)
		deliveries = append(deliveries, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate over deliveries: %w", kv.ErrDBOperationFailed, err)
	}
	return deliveries, nil
}

// GetSchemaVersion retrieves the current schema version from the store.
func (s *Store) GetSchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: failed to get schema version: %w", kv.ErrDBOperationFailed, err)
	}
	return version, nil
}

// SetSchemaVersion sets the current schema version in the store.
func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('schema_version', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, version)
	if err != nil {
		return fmt.Errorf("%w: failed to set schema version: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}
