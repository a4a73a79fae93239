package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/robfig/cron/v3"

	"github.com/hallpass-app/hallpass/internal/clients/slack"
	"github.com/hallpass-app/hallpass/internal/dispatcher"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/lock"
	"github.com/hallpass-app/hallpass/internal/poller"
	"github.com/hallpass-app/hallpass/internal/sourcer"
)

// DefaultSchedule runs the dispatcher once a day at 07:00. Recurring
// messages are sent on every run on their day, so more frequent schedules
// resend them.
const DefaultSchedule = "0 7 * * *"

// Runner performs a dispatch run.
type Runner interface {
	Run(ctx context.Context) (*dispatcher.Report, error)
}

// Config holds the worker's settings.
type Config struct {
	Schedule        string
	Location        *time.Location
	RefreshInterval time.Duration
	SourceURLs      []string
	AlertChannel    string
}

// Worker triggers dispatch runs on a cron schedule and keeps the store in
// sync with the configured manifests.
type Worker struct {
	runner Runner
	store  kv.Storer
	poller *poller.Poller
	alerts slack.Client
	cfg    Config

	trigger chan struct{}
	mu      sync.Mutex
}

// New creates a new worker. poller and alerts may be nil.
func New(runner Runner, store kv.Storer, poller *poller.Poller, alerts slack.Client, cfg Config) *Worker {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	return &Worker{
		runner:  runner,
		store:   store,
		poller:  poller,
		alerts:  alerts,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
}

// Run blocks, dispatching on schedule, until ctx is cancelled. SIGHUP
// refreshes the sources and dispatches immediately.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(w.cfg.Location),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(w.cfg.Schedule, func() { w.Dispatch(ctx) }); err != nil {
		return fmt.Errorf("invalid dispatcher schedule %q: %w", w.cfg.Schedule, err)
	}

	slog.Info("starting worker", "schedule", w.cfg.Schedule, "sources", len(w.cfg.SourceURLs))
	now := time.Now().In(w.cfg.Location)
	if next, err := NextRun(w.cfg.Schedule, now); err == nil {
		slog.Info("next dispatch run", "at", next)
	}
	if FiresMoreThanDaily(w.cfg.Schedule, now) {
		slog.Warn("dispatcher schedule fires more than once a day, recurring messages will be sent on every run on their day", "schedule", w.cfg.Schedule)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP)
	defer signal.Stop(signals)

	refreshTicker := time.NewTicker(w.cfg.RefreshInterval)
	defer refreshTicker.Stop()

	// Run a poll on startup
	if err := w.RefreshSources(ctx); err != nil {
		slog.Error("error running initial source refresh", "error", err)
	}

	c.Start()
	defer func() { <-c.Stop().Done() }()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping worker")
			return nil
		case <-refreshTicker.C:
			if err := w.RefreshSources(ctx); err != nil {
				slog.Error("error running source refresh", "error", err)
			}
		case <-signals:
			slog.Info("SIGHUP received, refreshing sources and dispatching")
			w.refreshAndDispatch(ctx, refreshTicker)
		case <-w.trigger:
			w.refreshAndDispatch(ctx, refreshTicker)
		}
	}
}

// Trigger asks a running worker to refresh and dispatch now, as SIGHUP does.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Worker) refreshAndDispatch(ctx context.Context, refreshTicker *time.Ticker) {
	refreshTicker.Reset(w.cfg.RefreshInterval)
	if err := w.RefreshSources(ctx); err != nil {
		slog.Error("error running source refresh", "error", err)
	}
	w.Dispatch(ctx)
}

// Dispatch performs one run and posts an alert if it failed.
func (w *Worker) Dispatch(ctx context.Context) (*dispatcher.Report, error) {
	report, err := w.runner.Run(ctx)
	if errors.Is(err, lock.ErrRunInProgress) {
		slog.Info("skipping dispatch, another run is in progress")
		return nil, err
	}
	if err != nil {
		slog.Error("dispatch run failed", "error", err)
		w.Alert(ctx, report, err)
	}
	return report, err
}

// Alert posts a run failure to the alert channel, if one is configured.
func (w *Worker) Alert(ctx context.Context, report *dispatcher.Report, runErr error) {
	if w.alerts == nil || w.cfg.AlertChannel == "" {
		return
	}

	text := fmt.Sprintf(":rotating_light: hallpass dispatch run failed: %v", runErr)
	if report != nil {
		text += fmt.Sprintf("\nsent %d, failed %d, retired %d", report.Sent, report.Failed, report.Retired)
	}
	if _, _, err := w.alerts.PostMessage(ctx, w.cfg.AlertChannel, text); err != nil {
		slog.Warn("failed to post alert", "channel", w.cfg.AlertChannel, "error", err)
	}
}

// RefreshSources imports the manifests that changed since the last refresh.
func (w *Worker) RefreshSources(ctx context.Context) error {
	if w.poller == nil || len(w.cfg.SourceURLs) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	slog.Debug("polling for sources", "urls", w.cfg.SourceURLs)
	sources, err := w.poller.Poll(ctx, w.cfg.SourceURLs)
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range sources {
		res, err := sourcer.Import(ctx, w.store, s, time.Now())
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to import %s: %w", s.URL, err))
			continue
		}
		slog.Info("imported source", "url", s.URL, "added", res.Added, "updated", res.Updated, "expired", res.Expired)
	}
	return errors.Join(errs...)
}

// NextRun returns the next time schedule fires after now.
func NextRun(schedule string, now time.Time) (time.Time, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	next := expr.Next(now)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %q never fires", schedule)
	}
	return next, nil
}

// FiresMoreThanDaily reports whether two runs of schedule within the next
// few weeks are less than a day apart.
func FiresMoreThanDaily(schedule string, now time.Time) bool {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return false
	}
	runs := expr.NextN(now, 64)
	for i := 1; i < len(runs); i++ {
		if runs[i].Sub(runs[i-1]) < 24*time.Hour {
			return true
		}
	}
	return false
}

// cronLogger sends cron's logs to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
