package model

import "time"

// DeliveryStatus is the outcome of a send attempt.
type DeliveryStatus string

const (
	// DeliverySent means the provider accepted the message.
	DeliverySent DeliveryStatus = "sent"
	// DeliveryFailed means the send was attempted and failed.
	DeliveryFailed DeliveryStatus = "failed"
)

// Delivery records one send attempt of a scheduled message.
type Delivery struct {
	ID         string         `json:"id"`
	ShortID    string         `json:"short_id"`
	MessageID  string         `json:"message_id"`
	Kind       Kind           `json:"kind"`
	To         []string       `json:"to"`
	Status     DeliveryStatus `json:"status"`
	ProviderID string         `json:"provider_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	Recurring  bool           `json:"recurring"`
	Timestamp  time.Time      `json:"timestamp"`
}
