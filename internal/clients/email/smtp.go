package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// SMTPClient is a client for sending emails using SMTP.
type SMTPClient struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPClient creates a new SMTP client.
func NewSMTPClient(host string, port int, username, password, from string) Client {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPClient{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

// Send delivers msg in a single SMTP transaction covering To, CC and BCC.
func (c *SMTPClient) Send(ctx context.Context, msg *Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	raw, id, err := c.build(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build message: %w", ErrSendFailed, err)
	}

	recipients := make([]string, 0, len(msg.To)+len(msg.CC)+len(msg.BCC))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.CC...)
	recipients = append(recipients, msg.BCC...)

	if err := smtp.SendMail(c.addr, c.auth, c.from, recipients, raw); err != nil {
		return nil, fmt.Errorf("%w: failed to send email to %s: %w", ErrSendFailed, strings.Join(msg.To, ", "), err)
	}
	return &Result{ID: id, Status: "sent"}, nil
}

func (c *SMTPClient) build(msg *Message) ([]byte, string, error) {
	id := fmt.Sprintf("<%d.hallpass@%s>", time.Now().UnixNano(), domainOf(c.from))

	var buf bytes.Buffer
	headers := []string{
		"From: " + c.from,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Message-ID: " + id,
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
	}
	if len(msg.CC) > 0 {
		headers = append(headers, "Cc: "+strings.Join(msg.CC, ", "))
	}

	contentType := "text/plain; charset=utf-8"
	if msg.HTML {
		contentType = "text/html; charset=utf-8"
	}

	if len(msg.Attachments) == 0 {
		headers = append(headers, "Content-Type: "+contentType)
		buf.WriteString(strings.Join(headers, "\r\n"))
		buf.WriteString("\r\n\r\n")
		buf.WriteString(msg.Body)
		return buf.Bytes(), id, nil
	}

	mw := multipart.NewWriter(&buf)
	headers = append(headers, fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mw.Boundary()))
	header := strings.Join(headers, "\r\n") + "\r\n\r\n"

	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write([]byte(msg.Body)); err != nil {
		return nil, "", err
	}

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		})
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write([]byte(base64.StdEncoding.EncodeToString(a.Content))); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return append([]byte(header), buf.Bytes()...), id, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return strings.Trim(addr[i+1:], ">")
	}
	return "localhost"
}
