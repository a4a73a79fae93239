package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMessage is returned when a scheduled message fails validation.
var ErrInvalidMessage = errors.New("invalid message")

// Kind discriminates the scheduled message variants.
type Kind string

const (
	// KindSMS is a text message sent to a single phone number.
	KindSMS Kind = "sms"
	// KindEmail is an email sent to one or more addresses.
	KindEmail Kind = "email"
)

// Kinds lists every kind in dispatch order.
var Kinds = []Kind{KindSMS, KindEmail}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindSMS:
		return KindSMS, nil
	case KindEmail:
		return KindEmail, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, s)
	}
}

// Format describes how a body is written.
type Format string

const (
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Mode is derived from the trigger fields of a message.
type Mode int

const (
	// ModeNone is a message with neither a date nor days. It is never due.
	ModeNone Mode = iota
	// ModeOneTime is a message due once at its date.
	ModeOneTime
	// ModeRecurring is a message due on each of its weekdays.
	ModeRecurring
)

func (m Mode) String() string {
	switch m {
	case ModeOneTime:
		return "one-time"
	case ModeRecurring:
		return "recurring"
	default:
		return "none"
	}
}

// Attachment is a previously uploaded file referenced by a durable URL.
type Attachment struct {
	URL         string `json:"url" yaml:"url"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
}

// ScheduledMessage is an SMS or email waiting to be sent, once or on a weekly cycle.
type ScheduledMessage struct {
	ID          string       `json:"id" yaml:"id"`
	ShortID     string       `json:"short_id,omitempty" yaml:"-"`
	Kind        Kind         `json:"kind" yaml:"kind"`
	To          []string     `json:"to" yaml:"to"`
	CC          []string     `json:"cc,omitempty" yaml:"cc,omitempty"`
	BCC         []string     `json:"bcc,omitempty" yaml:"bcc,omitempty"`
	Subject     string       `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body        string       `json:"body" yaml:"body"`
	Format      Format       `json:"format,omitempty" yaml:"format,omitempty"`
	MediaURLs   []string     `json:"media_urls,omitempty" yaml:"media_urls,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Date        *time.Time   `json:"date,omitempty" yaml:"date,omitempty"`
	Days        []Weekday    `json:"days,omitempty" yaml:"days,omitempty"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
}

// NewSMS creates a scheduled SMS with a fresh ID.
func NewSMS(to, body string, mediaURLs []string) *ScheduledMessage {
	m := &ScheduledMessage{
		Kind:      KindSMS,
		To:        []string{to},
		Body:      body,
		MediaURLs: mediaURLs,
	}
	m.assignID()
	return m
}

// NewEmail creates a scheduled email with a fresh ID.
func NewEmail(to []string, subject, body string) *ScheduledMessage {
	m := &ScheduledMessage{
		Kind:    KindEmail,
		To:      to,
		Subject: subject,
		Body:    body,
	}
	m.assignID()
	return m
}

func (m *ScheduledMessage) assignID() {
	m.ID = uuid.NewString()
	m.ShortID = GenerateShortID(m.ID)
	m.CreatedAt = time.Now().UTC()
}

// EnsureID assigns an ID to messages created outside of NewSMS and NewEmail.
func (m *ScheduledMessage) EnsureID() {
	if m.ID == "" {
		m.assignID()
	}
	if m.ShortID == "" {
		m.ShortID = GenerateShortID(m.ID)
	}
}

// Normalize clears a zero date so that stores persist it as absent. A zero
// date is treated as unset everywhere else.
func (m *ScheduledMessage) Normalize() {
	if m.Date != nil && m.Date.IsZero() {
		m.Date = nil
	}
}

// Mode reports whether the message is one-time or recurring. A date takes
// precedence over days when both are set.
func (m *ScheduledMessage) Mode() Mode {
	switch {
	case m.Date != nil && !m.Date.IsZero():
		return ModeOneTime
	case len(m.Days) > 0:
		return ModeRecurring
	default:
		return ModeNone
	}
}

// HasDay reports whether the message recurs on the given weekday.
func (m *ScheduledMessage) HasDay(day Weekday) bool {
	for _, d := range m.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Validate checks the invariants a message must hold before it is stored.
func (m *ScheduledMessage) Validate() error {
	if _, err := ParseKind(string(m.Kind)); err != nil {
		return err
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("%w: empty recipient", ErrInvalidMessage)
		}
	}
	if m.Kind == KindSMS && len(m.To) != 1 {
		return fmt.Errorf("%w: sms takes exactly one recipient, got %d", ErrInvalidMessage, len(m.To))
	}
	if m.Mode() == ModeNone {
		return fmt.Errorf("%w: either a date or at least one day is required", ErrInvalidMessage)
	}
	for _, d := range m.Days {
		if !d.Valid() {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidMessage, string(d))
		}
	}
	switch m.Format {
	case "", FormatText, FormatHTML, FormatMarkdown:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidMessage, string(m.Format))
	}
	return nil
}

// Recipient returns the single phone number of an SMS, or the first address of an email.
func (m *ScheduledMessage) Recipient() string {
	if len(m.To) == 0 {
		return ""
	}
	return m.To[0]
}

// GenerateShortID generates a short ID for a given ID.
func GenerateShortID(id string) string {
	hash := sha256.Sum256([]byte(id))
	return hex.EncodeToString(hash[:])[:8]
}
