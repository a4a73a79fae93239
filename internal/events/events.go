// Package events publishes delivery outcomes for the realtime inbox.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/hallpass-app/hallpass/internal/model"
)

// Event describes the outcome of a single send attempt.
type Event struct {
	Type      string               `json:"type"`
	MessageID string               `json:"message_id"`
	Kind      model.Kind           `json:"kind"`
	To        []string             `json:"to"`
	Status    model.DeliveryStatus `json:"status"`
	Error     string               `json:"error,omitempty"`
	Retired   bool                 `json:"retired"`
	Timestamp time.Time            `json:"timestamp"`
}

// TypeDelivery is the type of every event emitted by the dispatcher.
const TypeDelivery = "message.delivery"

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, *Event) error { return nil }
func (Noop) Close() error                          { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	PublishFunc func(ctx context.Context, e *Event) error

	mu     sync.Mutex
	events []*Event
}

// Publish records e.
func (r *Recorder) Publish(ctx context.Context, e *Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.PublishFunc != nil {
		return r.PublishFunc(ctx, e)
	}
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of what has been published.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}
