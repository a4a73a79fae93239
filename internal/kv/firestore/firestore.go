package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	smsMessagesCollection   = "sms_messages"
	emailMessagesCollection = "email_messages"
	deliveriesCollection    = "deliveries"
	metaCollection          = "meta"
)

func messagesCollection(kind model.Kind) (string, error) {
	switch kind {
	case model.KindSMS:
		return smsMessagesCollection, nil
	case model.KindEmail:
		return emailMessagesCollection, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", kv.ErrDBOperationFailed, kind)
	}
}

// Store manages the persistence of scheduled messages in Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore creates a new Store and initializes the Firestore client.
func NewStore(projectID string) (kv.Storer, error) {
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close closes the Firestore client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// FindDueOneTime returns messages of kind whose date is at or before now.
func (s *Store) FindDueOneTime(ctx context.Context, kind model.Kind, now time.Time) ([]*model.ScheduledMessage, error) {
	collection, err := messagesCollection(kind)
	if err != nil {
		return nil, err
	}
	return s.queryMessages(s.client.Collection(collection).Where("Date", "<=", now).Documents(ctx))
}

// FindDueRecurring returns messages of kind whose days contain weekday.
func (s *Store) FindDueRecurring(ctx context.Context, kind model.Kind, weekday model.Weekday) ([]*model.ScheduledMessage, error) {
	collection, err := messagesCollection(kind)
	if err != nil {
		return nil, err
	}
	return s.queryMessages(s.client.Collection(collection).Where("Days", "array-contains", string(weekday)).Documents(ctx))
}

func (s *Store) queryMessages(iter *firestore.DocumentIterator) ([]*model.ScheduledMessage, error) {
	defer iter.Stop()

	var messages []*model.ScheduledMessage
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to query scheduled messages: %w", kv.ErrDBOperationFailed, err)
		}
		var m model.ScheduledMessage
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal scheduled message: %w", kv.ErrSerializationFailed, err)
		}
		messages = append(messages, &m)
	}
	return messages, nil
}

// Delete removes a scheduled message. Firestore does not fail on missing documents.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id string) error {
	collection, err := messagesCollection(kind)
	if err != nil {
		return err
	}
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("%w: failed to delete scheduled message: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}

// AddMessage stores a message, replacing any message with the same ID.
func (s *Store) AddMessage(ctx context.Context, m *model.ScheduledMessage) error {
	collection, err := messagesCollection(m.Kind)
	if err != nil {
		return err
	}
	m.EnsureID()
	m.Normalize()
	if _, err := s.client.Collection(collection).Doc(m.ID).Set(ctx, m); err != nil {
		return fmt.Errorf("%w: failed to add scheduled message: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}

// GetMessage retrieves a message by its full ID, or failing that by short ID prefix.
func (s *Store) GetMessage(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	for _, collection := range []string{smsMessagesCollection, emailMessagesCollection} {
		doc, err := s.client.Collection(collection).Doc(id).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return nil, fmt.Errorf("%w: failed to get scheduled message: %w", kv.ErrDBOperationFailed, err)
		}
		var m model.ScheduledMessage
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal scheduled message: %w", kv.ErrSerializationFailed, err)
		}
		return &m, nil
	}

	all, err := s.ListMessages(ctx, "")
	if err != nil {
		return nil, err
	}
	var found []*model.ScheduledMessage
	for _, m := range all {
		if strings.HasPrefix(m.ShortID, id) {
			found = append(found, m)
		}
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
		collection, err := messagesCollection(k)
		if err != nil {
			return nil, err
		}
		found, err := s.queryMessages(s.client.Collection(collection).Documents(ctx))
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
	if _, err := s.client.Collection(deliveriesCollection).Doc(d.ID).Set(ctx, d); err != nil {
		return fmt.Errorf("%w: failed to add delivery: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}

// ListDeliveries retrieves all delivery records from the store.
func (s *Store) ListDeliveries(ctx context.Context) ([]*model.Delivery, error) {
	iter := s.client.Collection(deliveriesCollection).Documents(ctx)
	defer iter.Stop()

	var deliveries []*model.Delivery
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list deliveries: %w", kv.ErrDBOperationFailed, err)
		}
		var d model.Delivery
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal delivery: %w", kv.ErrSerializationFailed, err)
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, nil
}

type schemaDoc struct {
	Version int `firestore:"version"`
}

// GetSchemaVersion retrieves the current schema version from the store.
func (s *Store) GetSchemaVersion(ctx context.Context) (int, error) {
	doc, err := s.client.Collection(metaCollection).Doc("schema").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: failed to get schema version: %w", kv.ErrDBOperationFailed, err)
	}
	var sd schemaDoc
	if err := doc.DataTo(&sd); err != nil {
		return 0, fmt.Errorf("%w: failed to unmarshal schema version: %w", kv.ErrSerializationFailed, err)
	}
	return sd.Version, nil
}

// SetSchemaVersion sets the current schema version in the store.
func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.client.Collection(metaCollection).Doc("schema").Set(ctx, schemaDoc{Version: version}); err != nil {
		return fmt.Errorf("%w: failed to set schema version: %w", kv.ErrDBOperationFailed, err)
	}
	return nil
}
