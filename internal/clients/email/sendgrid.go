package email

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hallpass-app/hallpass/internal/formatter"
)

// SendGridClient sends email through the SendGrid v3 API.
type SendGridClient struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridClient creates a new SendGrid client.
func NewSendGridClient(apiKey, fromName, fromAddress string) Client {
	return &SendGridClient{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

// Send sends msg as one personalization, so all recipients see the same To and CC lists.
func (c *SendGridClient) Send(ctx context.Context, msg *Message) (*Result, error) {
	m := buildSendGridMessage(c.from, msg)

	resp, err := c.client.SendWithContext(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send email: %w", ErrSendFailed, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: sendgrid returned status %d: %s", ErrSendFailed, resp.StatusCode, resp.Body)
	}

	result := &Result{Status: fmt.Sprintf("%d", resp.StatusCode)}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		result.ID = ids[0]
	}
	return result, nil
}

func buildSendGridMessage(from *mail.Email, msg *Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	for _, cc := range msg.CC {
		p.AddCCs(mail.NewEmail("", cc))
	}
	for _, bcc := range msg.BCC {
		p.AddBCCs(mail.NewEmail("", bcc))
	}
	m.AddPersonalizations(p)

	if msg.HTML {
		// SendGrid requires text/plain to come before text/html.
		if text, err := formatter.ToText(msg.Body); err == nil && text != "" {
			m.AddContent(mail.NewContent("text/plain", text))
		}
		m.AddContent(mail.NewContent("text/html", msg.Body))
	} else {
		m.AddContent(mail.NewContent("text/plain", msg.Body))
	}

	for _, a := range msg.Attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetFilename(a.Filename)
		if a.ContentType != "" {
			att.SetType(a.ContentType)
		}
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}
	return m
}
