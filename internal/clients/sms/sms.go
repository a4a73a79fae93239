package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrSendFailed is wrapped by every error returned from Send.
var ErrSendFailed = errors.New("sms send failed")

// Result is the provider's acknowledgement of a sent message.
type Result struct {
	ID     string
	Status string
}

// Client is an interface for sending text messages.
type Client interface {
	Send(ctx context.Context, body, to string, mediaURLs []string) (*Result, error)
}

// TwilioClient sends messages through the Twilio Messages API.
type TwilioClient struct {
	api  *twilio.RestClient
	from string
}

// NewClient creates a new Twilio client sending from the given number or messaging service SID.
func NewClient(accountSID, authToken, from string) Client {
	return NewClientWithHTTPClient(accountSID, authToken, from, &http.Client{Timeout: 30 * time.Second})
}

// NewClientWithHTTPClient creates a Twilio client whose API requests go
// through httpClient.
func NewClientWithHTTPClient(accountSID, authToken, from string, httpClient *http.Client) Client {
	base := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(accountSID, authToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(accountSID)
	return &TwilioClient{
		api: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
			Client:   base,
		}),
		from: from,
	}
}

// Send sends body to a single phone number, with optional media.
func (c *TwilioClient) Send(ctx context.Context, body, to string, mediaURLs []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetBody(body)
	if strings.HasPrefix(c.from, "MG") {
		params.SetMessagingServiceSid(c.from)
	} else {
		params.SetFrom(c.from)
	}
	if len(mediaURLs) > 0 {
		params.SetMediaUrl(mediaURLs)
	}

	resp, err := c.api.Api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send sms to %s: %w", ErrSendFailed, to, err)
	}

	result := &Result{}
	if resp.Sid != nil {
		result.ID = *resp.Sid
	}
	if resp.Status != nil {
		result.Status = string(*resp.Status)
	}
	if result.Status == "failed" || result.Status == "undelivered" {
		return result, fmt.Errorf("%w: provider reported status %s for %s", ErrSendFailed, result.Status, to)
	}
	return result, nil
}
