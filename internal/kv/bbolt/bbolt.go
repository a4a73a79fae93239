package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/hallpass-app/hallpass/internal/scheduler"
	"go.etcd.io/bbolt"
)

var (
	smsMessagesBucket   = []byte("sms_messages")
	emailMessagesBucket = []byte("email_messages")
	deliveriesBucket    = []byte("deliveries")
	metaBucket          = []byte("meta")
)

func messagesBucket(kind model.Kind) ([]byte, error) {
	switch kind {
	case model.KindSMS:
		return smsMessagesBucket, nil
	case model.KindEmail:
		return emailMessagesBucket, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", kv.ErrDBOperationFailed, kind)
	}
}

// Store manages the persistence of scheduled messages in a bbolt file.
type Store struct {
	db *bbolt.DB
}

// NewReadWriteStore creates a new read-write Store and initializes the database.
func NewReadWriteStore() (kv.Storer, error) {
	dbPath, err := xdg.DataFile("hallpass/hallpass.db")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get db path: %w", kv.ErrDBOperationFailed, err)
	}

	return newStore(dbPath, false)
}

// NewReadOnlyStore creates a new read-only Store.
func NewReadOnlyStore() (kv.Storer, error) {
	dbPath, err := xdg.DataFile("hallpass/hallpass.db")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get db path: %w", kv.ErrDBOperationFailed, err)
	}

	return newStore(dbPath, true)
}

// NewTestStore creates a new Store for testing purposes.
func NewTestStore(dbPath string) (kv.Storer, error) {
	return newStore(dbPath, false)
}

func newStore(dbPath string, readOnly bool) (kv.Storer, error) {
	options := &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  5 * time.Second,
	}
	db, err := bbolt.Open(dbPath, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open db: %w", kv.ErrDBOperationFailed, err)
	}

	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, name := range [][]byte{smsMessagesBucket, emailMessagesBucket, deliveriesBucket, metaBucket} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("%w: failed to create bucket '%s': %w", kv.ErrDBOperationFailed, name, err)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindDueOneTime returns messages of kind whose date is at or before now.
func (s *Store) FindDueOneTime(ctx context.Context, kind model.Kind, now time.Time) ([]*model.ScheduledMessage, error) {
	return s.filterMessages(kind, func(m *model.ScheduledMessage) bool {
		return scheduler.DueOneTime(m, now)
	})
}

// FindDueRecurring returns messages of kind whose days contain weekday.
func (s *Store) FindDueRecurring(ctx context.Context, kind model.Kind, weekday model.Weekday) ([]*model.ScheduledMessage, error) {
	return s.filterMessages(kind, func(m *model.ScheduledMessage) bool {
		return scheduler.DueRecurring(m, weekday)
	})
}

func (s *Store) filterMessages(kind model.Kind, keep func(*model.ScheduledMessage) bool) ([]*model.ScheduledMessage, error) {
	bucket, err := messagesBucket(kind)
	if err != nil {
		return nil, err
	}

	var messages []*model.ScheduledMessage
	err = s.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var m model.ScheduledMessage
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("%w: failed to unmarshal scheduled message: %w", kv.ErrSerializationFailed, err)
			}
			if keep(&m) {
				messages = append(messages, &m)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: failed to iterate over scheduled messages: %w", kv.ErrDBOperationFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Delete removes a scheduled message. Missing keys are ignored by bbolt.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id string) error {
	bucket, err := messagesBucket(kind)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucket).Delete([]byte(id)); err != nil {
			return fmt.Errorf("%w: failed to delete scheduled message: %w", kv.ErrDBOperationFailed, err)
		}
		return nil
	})
}

// AddMessage stores a message, replacing any message with the same ID.
func (s *Store) AddMessage(ctx context.Context, m *model.ScheduledMessage) error {
	bucket, err := messagesBucket(m.Kind)
	if err != nil {
		return err
	}
	m.EnsureID()
	m.Normalize()

	return s.db.Update(func(tx *bbolt.Tx) error {
		buf, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal scheduled message: %w", kv.ErrSerializationFailed, err)
		}
		if err := tx.Bucket(bucket).Put([]byte(m.ID), buf); err != nil {
			return fmt.Errorf("%w: failed to put scheduled message: %w", kv.ErrDBOperationFailed, err)
		}
		return nil
	})
}

// GetMessage retrieves a message by its full ID, or failing that by short ID prefix.
func (s *Store) GetMessage(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	var found []*model.ScheduledMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{smsMessagesBucket, emailMessagesBucket} {
			b := tx.Bucket(bucket)
			if v := b.Get([]byte(id)); v != nil {
				var m model.ScheduledMessage
				if err := json.Unmarshal(v, &m); err != nil {
					return fmt.Errorf("%w: failed to unmarshal scheduled message: %w", kv.ErrSerializationFailed, err)
				}
				found = []*model.ScheduledMessage{&m}
				return nil
			}
		}

		// If the full ID isn't found, try to find it by short ID.
		for _, bucket := range [][]byte{smsMessagesBucket, emailMessagesBucket} {
			err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
				var m model.ScheduledMessage
				if err := json.Unmarshal(v, &m); err != nil {
					return fmt.Errorf("%w: failed to unmarshal scheduled message: %w", kv.ErrSerializationFailed, err)
				}
				if strings.HasPrefix(m.ShortID, id) {
					found = append(found, &m)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("%w: failed to iterate over scheduled messages: %w", kv.ErrDBOperationFailed, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: message with id '%s'", kv.ErrNotFound, id)
	}
	if len(found) > 1 {
		return nil, fmt.Errorf("%w: message with short id '%s'", kv.ErrAmbiguousID, id)
	}
	return found[0], nil
}

// ListMessages returns the messages of kind, or all messages when kind is empty.
func (s *Store) ListMessages(ctx context.Context, kind model.Kind) ([]*model.ScheduledMessage, error) {
	kinds := model.Kinds
	if kind != "" {
		kinds = []model.Kind{kind}
	}

	var messages []*model.ScheduledMessage
	for _, k := range kinds {
		found, err := s.filterMessages(k, func(*model.ScheduledMessage) bool { return true })
		if err != nil {
			return nil, err
		}
		messages = append(messages, found...)
	}
	return messages, nil
}

// AddDelivery records a send attempt.
func (s *Store) AddDelivery(ctx context.Context, d *model.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.ShortID = model.GenerateShortID(d.ID)
	return s.putDelivery(d)
}

func (s *Store) putDelivery(d *model.Delivery) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buf, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal delivery: %w", kv.ErrSerializationFailed, err)
		}
		if err := tx.Bucket(deliveriesBucket).Put([]byte(d.ID), buf); err != nil {
			return fmt.Errorf("%w: failed to put delivery: %w", kv.ErrDBOperationFailed, err)
		}
		return nil
	})
}

// ListDeliveries retrieves all delivery records from the store.
func (s *Store) ListDeliveries(ctx context.Context) ([]*model.Delivery, error) {
	var deliveries []*model.Delivery
	err := s.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(deliveriesBucket).ForEach(func(k, v []byte) error {
			var d model.Delivery
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("%w: failed to unmarshal delivery: %w", kv.ErrSerializationFailed, err)
			}
			deliveries = append(deliveries, &d)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: failed to iterate over deliveries: %w", kv.ErrDBOperationFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// GetSchemaVersion retrieves the current schema version from the store.
func (s *Store) GetSchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(metaBucket).Get([]byte("schema_version"))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &version); err != nil {
			return fmt.Errorf("%w: failed to unmarshal schema version: %w", kv.ErrSerializationFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// SetSchemaVersion sets the current schema version in the store.
func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buf, err := json.Marshal(version)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal schema version: %w", kv.ErrSerializationFailed, err)
		}
		if err := tx.Bucket(metaBucket).Put([]byte("schema_version"), buf); err != nil {
			return fmt.Errorf("%w: failed to put schema version: %w", kv.ErrDBOperationFailed, err)
		}
		return nil
	})
}
