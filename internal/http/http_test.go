package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hallpass-app/hallpass/internal/dispatcher"
	hphttp "github.com/hallpass-app/hallpass/internal/http"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context) (*dispatcher.Report, error)

func (f runnerFunc) Run(ctx context.Context) (*dispatcher.Report, error) { return f(ctx) }

func do(t *testing.T, h http.Handler, method, path, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	h := hphttp.NewRouter(nil, "secret")
	rec, _ := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestDispatch(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := hphttp.NewRouter(runnerFunc(func(ctx context.Context) (*dispatcher.Report, error) {
			return &dispatcher.Report{Processed: true, Sent: 2, Retired: 1}, nil
		}), "")

		rec, body := do(t, h, http.MethodPost, "/dispatch", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["processed"])
		assert.Equal(t, float64(2), body["sent"])
		assert.Equal(t, float64(1), body["retired"])
	})

	t.Run("run failure", func(t *testing.T) {
		h := hphttp.NewRouter(runnerFunc(func(ctx context.Context) (*dispatcher.Report, error) {
			return &dispatcher.Report{}, fmt.Errorf("%w: connection refused", kv.ErrDBOperationFailed)
		}), "")

		rec, body := do(t, h, http.MethodPost, "/dispatch", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, false, body["processed"])
		assert.Contains(t, body["error"], "connection refused")
	})

	t.Run("run in progress", func(t *testing.T) {
		h := hphttp.NewRouter(runnerFunc(func(ctx context.Context) (*dispatcher.Report, error) {
			return nil, lock.ErrRunInProgress
		}), "")

		rec, _ := do(t, h, http.MethodPost, "/dispatch", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		h := hphttp.NewRouter(runnerFunc(func(ctx context.Context) (*dispatcher.Report, error) {
			t.Fatal("runner must not be called")
			return nil, nil
		}), "")

		rec, _ := do(t, h, http.MethodGet, "/dispatch", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestDispatch_Token(t *testing.T) {
	calls := 0
	h := hphttp.NewRouter(runnerFunc(func(ctx context.Context) (*dispatcher.Report, error) {
		calls++
		return &dispatcher.Report{Processed: true}, nil
	}), "secret")

	rec, _ := do(t, h, http.MethodPost, "/dispatch", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/dispatch", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/dispatch", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
}

type refresher struct{ calls int }

func (r *refresher) Trigger() { r.calls++ }

func TestRefresh(t *testing.T) {
	ref := &refresher{}
	h := hphttp.NewRouter(nil, "secret", hphttp.WithRefresher(ref))

	rec, _ := do(t, h, http.MethodPost, "/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, ref.calls)

	rec, body := do(t, h, http.MethodPost, "/refresh", "secret")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, true, body["queued"])
	assert.Equal(t, 1, ref.calls)
}

func TestRefresh_NotServedWithoutRefresher(t *testing.T) {
	h := hphttp.NewRouter(nil, "")
	rec, _ := do(t, h, http.MethodPost, "/refresh", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
