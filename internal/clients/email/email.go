package email

import (
	"context"
	"errors"
)

// ErrSendFailed is wrapped by every error returned from Send.
var ErrSendFailed = errors.New("email send failed")

// Attachment is a file attached to an email, already fetched.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single email to one or more recipients.
type Message struct {
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []Attachment
}

// Result is the provider's acknowledgement of a sent email.
type Result struct {
	ID     string
	Status string
}

// Client is an interface for sending emails.
type Client interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}
