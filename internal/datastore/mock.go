package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/hallpass-app/hallpass/internal/scheduler"
)

// MockStore is an in-memory implementation of the Storer interface.
// The *Err fields make the matching method fail, for testing error paths.
type MockStore struct {
	mu            sync.Mutex
	messages      map[string]*model.ScheduledMessage
	deliveries    map[string]*model.Delivery
	schemaVersion int

	FindDueOneTimeErr   error
	FindDueRecurringErr error
	DeleteErr           error

	DeleteCalls []string
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		messages:   make(map[string]*model.ScheduledMessage),
		deliveries: make(map[string]*model.Delivery),
	}
}

// FindDueOneTime returns messages of kind whose date is at or before now.
func (s *MockStore) FindDueOneTime(ctx context.Context, kind model.Kind, now time.Time) ([]*model.ScheduledMessage, error) {
	if s.FindDueOneTimeErr != nil {
		return nil, s.FindDueOneTimeErr
	}
	return s.filter(kind, func(m *model.ScheduledMessage) bool { return scheduler.DueOneTime(m, now) }), nil
}

// FindDueRecurring returns messages of kind whose days contain weekday.
func (s *MockStore) FindDueRecurring(ctx context.Context, kind model.Kind, weekday model.Weekday) ([]*model.ScheduledMessage, error) {
	if s.FindDueRecurringErr != nil {
		return nil, s.FindDueRecurringErr
	}
	return s.filter(kind, func(m *model.ScheduledMessage) bool { return scheduler.DueRecurring(m, weekday) }), nil
}

// filter returns copies ordered by creation time so tests are deterministic.
func (s *MockStore) filter(kind model.Kind, keep func(*model.ScheduledMessage) bool) []*model.ScheduledMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.ScheduledMessage
	for _, m := range s.messages {
		if (kind == "" || m.Kind == kind) && keep(m) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a message from the mock store.
func (s *MockStore) Delete(ctx context.Context, kind model.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls = append(s.DeleteCalls, id)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if m, ok := s.messages[id]; ok && m.Kind == kind {
		delete(s.messages, id)
	}
	return nil
}

// AddMessage adds or replaces a message in the mock store.
func (s *MockStore) AddMessage(ctx context.Context, m *model.ScheduledMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.EnsureID()
	m.Normalize()
	c := *m
	s.messages[m.ID] = &c
	return nil
}

// GetMessage retrieves a message by ID or short ID prefix.
func (s *MockStore) GetMessage(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		c := *m
		return &c, nil
	}

	var found []*model.ScheduledMessage
	for _, m := range s.messages {
		if strings.HasPrefix(m.ShortID, id) {
			c := *m
			found = append(found, &c)
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
func (s *MockStore) ListMessages(ctx context.Context, kind model.Kind) ([]*model.ScheduledMessage, error) {
	return s.filter(kind, func(*model.ScheduledMessage) bool { return true }), nil
}

// AddDelivery records a send attempt.
func (s *MockStore) AddDelivery(ctx context.Context, d *model.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.ShortID = model.GenerateShortID(d.ID)
	c := *d
	s.deliveries[d.ID] = &c
	return nil
}

// ListDeliveries retrieves all delivery records, oldest first.
func (s *MockStore) ListDeliveries(ctx context.Context) ([]*model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Delivery
	for _, d := range s.deliveries {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// GetSchemaVersion returns the stored schema version.
func (s *MockStore) GetSchemaVersion(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaVersion, nil
}

// SetSchemaVersion stores the schema version.
func (s *MockStore) SetSchemaVersion(ctx context.Context, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaVersion = version
	return nil
}

// Close is a no-op for the mock store.
func (s *MockStore) Close() error {
	return nil
}
