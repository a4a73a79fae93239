package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hallpass-app/hallpass/internal/dispatcher"
	"github.com/hallpass-app/hallpass/internal/lock"
)

// Runner performs a dispatch run.
type Runner interface {
	Run(ctx context.Context) (*dispatcher.Report, error)
}

// Refresher queues a source refresh followed by a dispatch run.
type Refresher interface {
	Trigger()
}

// RouterOption adds optional routes to the router.
type RouterOption func(chi.Router)

// WithRefresher serves POST /refresh, which queues a manifest refresh and a
// dispatch run on the worker and returns without waiting for them.
func WithRefresher(refresher Refresher) RouterOption {
	return func(r chi.Router) {
		r.Post("/refresh", func(w http.ResponseWriter, req *http.Request) {
			refresher.Trigger()
			writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
		})
	}
}

type errorResponse struct {
	Processed bool   `json:"processed"`
	Error     string `json:"error"`
}

// NewRouter returns the trigger and health check routes. When token is set,
// POST /dispatch and the optional routes require it as a bearer token.
func NewRouter(runner Runner, token string, opts ...RouterOption) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	r.Group(func(pr chi.Router) {
		if token != "" {
			pr.Use(requireBearer(token))
		}
		pr.Post("/dispatch", dispatchHandler(runner))
		for _, opt := range opts {
			opt(pr)
		}
	})

	return r
}

func dispatchHandler(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := runner.Run(r.Context())
		switch {
		case errors.Is(err, lock.ErrRunInProgress):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		case err != nil:
			slog.Error("triggered dispatch run failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, report)
		}
	}
}

func requireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// Start serves handler on port until ctx is cancelled.
func Start(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "addr", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("stopping http server")
		return srv.Shutdown(shutdownCtx)
	}
}
