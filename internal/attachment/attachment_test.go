package attachment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hallpass-app/hallpass/internal/attachment"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/permission-slip.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/files/blob", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("plain words"))
	})
	mux.HandleFunc("/files/big", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPResolver_Resolve(t *testing.T) {
	srv := newServer(t)
	r := attachment.NewHTTPResolverWithClient(srv.Client(), 32)

	t.Run("infers filename and content type", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), []model.Attachment{
			{URL: srv.URL + "/files/permission-slip.pdf"},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "permission-slip.pdf", got[0].Filename)
		assert.Equal(t, "application/pdf", got[0].ContentType)
		assert.Equal(t, []byte("%PDF-1.4"), got[0].Content)
	})

	t.Run("explicit values win", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), []model.Attachment{
			{URL: srv.URL + "/files/blob", Filename: "notes.txt", ContentType: "text/plain"},
		})
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", got[0].Filename)
		assert.Equal(t, "text/plain", got[0].ContentType)
	})

	t.Run("sniffs generic content", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), []model.Attachment{{URL: srv.URL + "/files/blob"}})
		require.NoError(t, err)
		assert.Equal(t, "blob", got[0].Filename)
		assert.Equal(t, "text/plain; charset=utf-8", got[0].ContentType)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), []model.Attachment{{URL: srv.URL + "/files/nope"}})
		assert.ErrorIs(t, err, attachment.ErrFetchFailed)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), []model.Attachment{{URL: srv.URL + "/files/big"}})
		assert.ErrorIs(t, err, attachment.ErrFetchFailed)
	})

	t.Run("none", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
