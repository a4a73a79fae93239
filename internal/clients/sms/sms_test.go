package sms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hallpass-app/hallpass/internal/clients/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirect sends every request to the test server, whatever its host.
type redirect struct {
	target *url.URL
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type twilioServer struct {
	*httptest.Server
	form url.Values
	path string
}

func newTwilioServer(t *testing.T, code int, body map[string]any) *twilioServer {
	t.Helper()
	s := &twilioServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.form = r.PostForm
		s.path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *twilioServer) client(t *testing.T, from string) sms.Client {
	t.Helper()
	target, err := url.Parse(s.URL)
	require.NoError(t, err)
	return sms.NewClientWithHTTPClient("AC123", "token", from, &http.Client{Transport: redirect{target: target}})
}

func TestTwilioClient_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("queued", func(t *testing.T) {
		srv := newTwilioServer(t, http.StatusCreated, map[string]any{"sid": "SM123", "status": "queued"})

		res, err := srv.client(t, "+15550000000").Send(ctx, "Snow day", "+15551234567", []string{"https://files.example.com/map.png"})
		require.NoError(t, err)
		assert.Equal(t, &sms.Result{ID: "SM123", Status: "queued"}, res)

		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", srv.path)
		assert.Equal(t, "+15551234567", srv.form.Get("To"))
		assert.Equal(t, "+15550000000", srv.form.Get("From"))
		assert.Equal(t, "Snow day", srv.form.Get("Body"))
		assert.Equal(t, "https://files.example.com/map.png", srv.form.Get("MediaUrl"))
	})

	t.Run("messaging service", func(t *testing.T) {
		srv := newTwilioServer(t, http.StatusCreated, map[string]any{"sid": "SM124", "status": "accepted"})

		_, err := srv.client(t, "MG0001").Send(ctx, "Snow day", "+15551234567", nil)
		require.NoError(t, err)
		assert.Equal(t, "MG0001", srv.form.Get("MessagingServiceSid"))
		assert.Empty(t, srv.form.Get("From"))
	})

	for _, status := range []string{"failed", "undelivered"} {
		t.Run("provider status "+status, func(t *testing.T) {
			srv := newTwilioServer(t, http.StatusCreated, map[string]any{"sid": "SM125", "status": status})

			res, err := srv.client(t, "+15550000000").Send(ctx, "Snow day", "+15551234567", nil)
			assert.ErrorIs(t, err, sms.ErrSendFailed)
			require.NotNil(t, res)
			assert.Equal(t, "SM125", res.ID)
		})
	}

	t.Run("api error", func(t *testing.T) {
		srv := newTwilioServer(t, http.StatusBadRequest, map[string]any{
			"code":    21211,
			"message": "The 'To' number is not a valid phone number.",
			"status":  400,
		})

		_, err := srv.client(t, "+15550000000").Send(ctx, "Snow day", "not-a-number", nil)
		assert.ErrorIs(t, err, sms.ErrSendFailed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := newTwilioServer(t, http.StatusCreated, map[string]any{"sid": "SM126", "status": "queued"})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := srv.client(t, "+15550000000").Send(cancelled, "Snow day", "+15551234567", nil)
		assert.ErrorIs(t, err, sms.ErrSendFailed)
		assert.Empty(t, srv.path)
	})
}
