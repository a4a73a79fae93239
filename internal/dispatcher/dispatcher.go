// Package dispatcher sends the scheduled messages that are due and retires
// the one-time ones that were delivered.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/hallpass-app/hallpass/internal/attachment"
	"github.com/hallpass-app/hallpass/internal/clients/email"
	"github.com/hallpass-app/hallpass/internal/clients/sms"
	"github.com/hallpass-app/hallpass/internal/events"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/lock"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/hallpass-app/hallpass/internal/processor"
)

const instrumentationName = "github.com/hallpass-app/hallpass/internal/dispatcher"

// ErrNoClient is returned for a message whose kind has no transport configured.
var ErrNoClient = errors.New("no client configured")

// Report summarises one dispatch run.
type Report struct {
	Processed bool     `json:"processed"`
	DryRun    bool     `json:"dry_run,omitempty"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Retired   int      `json:"retired"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Dispatcher finds due messages in the store and sends them.
type Dispatcher struct {
	store       kv.Storer
	smsClient   sms.Client
	emailClient email.Client

	clock       func() time.Time
	location    *time.Location
	limiter     *rate.Limiter
	locker      lock.Locker
	publisher   events.Publisher
	attachments attachment.Resolver
	dryRun      bool

	tracer  trace.Tracer
	sent    metric.Int64Counter
	failed  metric.Int64Counter
	retired metric.Int64Counter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the source of the current time.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) { d.clock = clock }
}

// WithLocation sets the time zone the current weekday is computed in.
func WithLocation(loc *time.Location) Option {
	return func(d *Dispatcher) {
		if loc != nil {
			d.location = loc
		}
	}
}

// WithRateLimit limits sends to perSecond. Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(d *Dispatcher) {
		if perSecond > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			d.limiter = nil
		}
	}
}

// WithLocker sets the lock held for the duration of a run.
func WithLocker(l lock.Locker) Option {
	return func(d *Dispatcher) { d.locker = l }
}

// WithPublisher sets where delivery events are published.
func WithPublisher(p events.Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithAttachmentResolver sets how email attachments are fetched.
func WithAttachmentResolver(r attachment.Resolver) Option {
	return func(d *Dispatcher) { d.attachments = r }
}

// WithDryRun logs due messages instead of sending or deleting them.
func WithDryRun(dryRun bool) Option {
	return func(d *Dispatcher) { d.dryRun = dryRun }
}

// New creates a Dispatcher. Either client may be nil, in which case messages
// of that kind fail and stay in the store.
func New(store kv.Storer, smsClient sms.Client, emailClient email.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		smsClient:   smsClient,
		emailClient: emailClient,
		clock:       time.Now,
		location:    time.Local,
		locker:      lock.NewLocal(),
		publisher:   events.Noop{},
		attachments: attachment.NewHTTPResolver(),
		tracer:      otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}

	meter := otel.Meter(instrumentationName)
	d.sent = counter(meter, "hallpass.messages.sent", "Messages accepted by a provider")
	d.failed = counter(meter, "hallpass.messages.failed", "Messages that failed to send")
	d.retired = counter(meter, "hallpass.messages.retired", "One-time messages deleted after sending")

	return d
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		slog.Warn("failed to create counter", "name", name, "error", err)
	}
	return c
}

// Run performs one dispatch invocation. It returns lock.ErrRunInProgress if
// another run holds the lock. The returned error joins the failures that
// aborted a whole kind; per-message failures are only in the report.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	unlock, err := d.locker.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := d.tracer.Start(ctx, "dispatcher.Run")
	defer span.End()

	// Templates see the same weekday the selection uses.
	now := d.clock().In(d.location)
	weekday := model.WeekdayOf(now.Weekday())
	span.SetAttributes(
		attribute.String("hallpass.weekday", string(weekday)),
		attribute.Bool("hallpass.dry_run", d.dryRun),
	)
	slog.Debug("starting dispatch run", "now", now, "weekday", weekday, "dry_run", d.dryRun)

	report := &Report{DryRun: d.dryRun}
	var runErrs []error
	for _, kind := range model.Kinds {
		if err := d.runKind(ctx, kind, now, weekday, report); err != nil {
			slog.Error("dispatch aborted for kind", "kind", kind, "error", err)
			report.Errors = append(report.Errors, err.Error())
			runErrs = append(runErrs, err)
		}
	}

	span.SetAttributes(
		attribute.Int("hallpass.sent", report.Sent),
		attribute.Int("hallpass.failed", report.Failed),
		attribute.Int("hallpass.retired", report.Retired),
	)

	err = errors.Join(runErrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch run failed")
		return report, err
	}

	report.Processed = true
	slog.Info("dispatch run complete", "sent", report.Sent, "failed", report.Failed, "retired", report.Retired, "skipped", report.Skipped)
	return report, nil
}

// Due returns the messages of kind a run at now would send, in send order,
// with the number of query results that were dropped.
func (d *Dispatcher) Due(ctx context.Context, kind model.Kind, now time.Time, weekday model.Weekday) ([]*model.ScheduledMessage, int, error) {
	oneTime, err := d.store.FindDueOneTime(ctx, kind, now)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find due one-time %s messages: %w", kind, err)
	}
	recurring, err := d.store.FindDueRecurring(ctx, kind, weekday)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find due recurring %s messages: %w", kind, err)
	}

	due, skipped := merge(oneTime, recurring)
	return due, skipped, nil
}

// merge concatenates both result sets, keeping the first occurrence of each
// ID. A message with a date is one-time even if it also has days, so it is
// dropped from the recurring results.
func merge(oneTime, recurring []*model.ScheduledMessage) ([]*model.ScheduledMessage, int) {
	seen := make(map[string]bool, len(oneTime)+len(recurring))
	due := make([]*model.ScheduledMessage, 0, len(oneTime)+len(recurring))
	skipped := 0

	for _, m := range oneTime {
		if seen[m.ID] {
			skipped++
			continue
		}
		seen[m.ID] = true
		due = append(due, m)
	}
	for _, m := range recurring {
		if seen[m.ID] {
			skipped++
			continue
		}
		if m.Mode() == model.ModeOneTime {
			slog.Debug("skipping one-time message matched by weekday", "message_id", m.ID)
			skipped++
			continue
		}
		seen[m.ID] = true
		due = append(due, m)
	}
	return due, skipped
}

func (d *Dispatcher) runKind(ctx context.Context, kind model.Kind, now time.Time, weekday model.Weekday, report *Report) error {
	ctx, span := d.tracer.Start(ctx, "dispatcher.runKind", trace.WithAttributes(attribute.String("hallpass.kind", string(kind))))
	defer span.End()

	due, skipped, err := d.Due(ctx, kind, now, weekday)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return err
	}
	report.Skipped += skipped
	span.SetAttributes(attribute.Int("hallpass.due", len(due)))

	for _, m := range due {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("dispatch of %s messages interrupted: %w", kind, err)
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("dispatch of %s messages interrupted: %w", kind, err)
		}

		d.process(ctx, m, now, report)
	}
	return nil
}

// process sends a single message, records the outcome and retires it if it
// was a one-time message that the provider accepted.
func (d *Dispatcher) process(ctx context.Context, m *model.ScheduledMessage, now time.Time, report *Report) {
	log := slog.With("message_id", m.ID, "kind", m.Kind, "mode", m.Mode().String())

	if d.dryRun {
		log.Info("dry run: would send message", "to", m.To, "subject", m.Subject)
		report.Skipped++
		return
	}

	attrs := metric.WithAttributes(attribute.String("kind", string(m.Kind)))
	recurring := m.Mode() == model.ModeRecurring

	result, err := d.send(ctx, m, now)
	if err != nil {
		log.Error("failed to send message", "error", err)
		report.Failed++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", m.ID, err))
		d.add(ctx, d.failed, 1, attrs)
		d.record(ctx, m, model.DeliveryFailed, "", err, recurring, false)
		return
	}

	log.Info("sent message", "provider_id", result.ID, "status", result.Status)
	report.Sent++
	d.add(ctx, d.sent, 1, attrs)

	retired := false
	if !recurring {
		if err := d.store.Delete(ctx, m.Kind, m.ID); err != nil {
			log.Error("failed to retire sent message", "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", m.ID, err))
		} else {
			retired = true
			report.Retired++
			d.add(ctx, d.retired, 1, attrs)
		}
	}

	d.record(ctx, m, model.DeliverySent, result.ID, nil, recurring, retired)
}

type sendResult struct {
	ID     string
	Status string
}

func (d *Dispatcher) send(ctx context.Context, m *model.ScheduledMessage, now time.Time) (*sendResult, error) {
	rendered, err := processor.Render(m, now)
	if err != nil {
		return nil, err
	}

	switch m.Kind {
	case model.KindSMS:
		if d.smsClient == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoClient, m.Kind)
		}
		res, err := d.smsClient.Send(ctx, rendered.Body, m.Recipient(), m.MediaURLs)
		if err != nil {
			return nil, err
		}
		return &sendResult{ID: res.ID, Status: res.Status}, nil

	case model.KindEmail:
		if d.emailClient == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoClient, m.Kind)
		}
		var files []email.Attachment
		if len(m.Attachments) > 0 {
			files, err = d.attachments.Resolve(ctx, m.Attachments)
			if err != nil {
				return nil, err
			}
		}
		res, err := d.emailClient.Send(ctx, &email.Message{
			To:          m.To,
			CC:          m.CC,
			BCC:         m.BCC,
			Subject:     rendered.Subject,
			Body:        rendered.Body,
			HTML:        rendered.HTML,
			Attachments: files,
		})
		if err != nil {
			return nil, err
		}
		return &sendResult{ID: res.ID, Status: res.Status}, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", model.ErrInvalidMessage, string(m.Kind))
}

func (d *Dispatcher) add(ctx context.Context, c metric.Int64Counter, n int64, opts ...metric.AddOption) {
	if c != nil {
		c.Add(ctx, n, opts...)
	}
}

// record writes the delivery log entry and publishes the event. Failures
// here are logged and never change the outcome of the send.
func (d *Dispatcher) record(ctx context.Context, m *model.ScheduledMessage, status model.DeliveryStatus, providerID string, sendErr error, recurring, retired bool) {
	ts := d.clock().UTC()
	delivery := &model.Delivery{
		MessageID:  m.ID,
		Kind:       m.Kind,
		To:         m.To,
		Status:     status,
		ProviderID: providerID,
		Recurring:  recurring,
		Timestamp:  ts,
	}
	event := &events.Event{
		Type:      events.TypeDelivery,
		MessageID: m.ID,
		Kind:      m.Kind,
		To:        m.To,
		Status:    status,
		Retired:   retired,
		Timestamp: ts,
	}
	if sendErr != nil {
		delivery.Error = sendErr.Error()
		event.Error = sendErr.Error()
	}

	if err := d.store.AddDelivery(ctx, delivery); err != nil {
		slog.Warn("failed to record delivery", "message_id", m.ID, "error", err)
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish delivery event", "message_id", m.ID, "error", err)
	}
}
