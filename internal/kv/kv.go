package kv

import (
	"context"
	"errors"
	"time"

	"github.com/hallpass-app/hallpass/internal/model"
)

// Err* are common errors returned by the datastore.
var (
	ErrNotFound            = errors.New("not found")
	ErrDBOperationFailed   = errors.New("db operation failed")
	ErrSerializationFailed = errors.New("serialization failed")
	ErrAmbiguousID         = errors.New("ambiguous ID")
)

// Storer is an interface that defines the methods for interacting with the datastore.
type Storer interface {
	// FindDueOneTime returns messages of kind whose date is at or before now.
	FindDueOneTime(ctx context.Context, kind model.Kind, now time.Time) ([]*model.ScheduledMessage, error)
	// FindDueRecurring returns messages of kind whose days contain weekday.
	FindDueRecurring(ctx context.Context, kind model.Kind, weekday model.Weekday) ([]*model.ScheduledMessage, error)
	// Delete removes a message. Deleting a missing message is not an error.
	Delete(ctx context.Context, kind model.Kind, id string) error

	AddMessage(ctx context.Context, m *model.ScheduledMessage) error
	// GetMessage looks a message up by its ID or a unique prefix of its short ID.
	GetMessage(ctx context.Context, id string) (*model.ScheduledMessage, error)
	// ListMessages returns the messages of kind, or every message when kind is empty.
	ListMessages(ctx context.Context, kind model.Kind) ([]*model.ScheduledMessage, error)

	AddDelivery(ctx context.Context, d *model.Delivery) error
	ListDeliveries(ctx context.Context) ([]*model.Delivery, error)

	GetSchemaVersion(ctx context.Context) (int, error)
	SetSchemaVersion(ctx context.Context, version int) error

	Close() error
}
