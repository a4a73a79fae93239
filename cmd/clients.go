package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/hallpass-app/hallpass/internal/attachment"
	"github.com/hallpass-app/hallpass/internal/clients/email"
	"github.com/hallpass-app/hallpass/internal/clients/slack"
	"github.com/hallpass-app/hallpass/internal/clients/sms"
	"github.com/hallpass-app/hallpass/internal/dispatcher"
	"github.com/hallpass-app/hallpass/internal/events"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/lock"
)

// The constructors below are variables so tests can swap in mocks.
var (
	newSMSClient = func() sms.Client {
		sid := viper.GetString("sms.twilio.account_sid")
		token := viper.GetString("sms.twilio.auth_token")
		from := viper.GetString("sms.twilio.from")
		if sid == "" || token == "" || from == "" {
			slog.Warn("twilio is not configured, sms messages will fail")
			return nil
		}
		return sms.NewClient(sid, token, from)
	}

	newEmailClient = func() email.Client {
		from := viper.GetString("email.from")
		switch provider := viper.GetString("email.provider"); provider {
		case "sendgrid":
			apiKey := viper.GetString("email.sendgrid.api_key")
			if apiKey == "" || from == "" {
				slog.Warn("sendgrid is not configured, email messages will fail")
				return nil
			}
			return email.NewSendGridClient(apiKey, viper.GetString("email.from_name"), from)
		case "smtp":
			host := viper.GetString("email.host")
			if host == "" || from == "" {
				slog.Warn("smtp is not configured, email messages will fail")
				return nil
			}
			return email.NewSMTPClient(host, viper.GetInt("email.port"), viper.GetString("email.username"), viper.GetString("email.password"), from)
		default:
			slog.Warn("unknown email provider, email messages will fail", "provider", provider)
			return nil
		}
	}

	newSlackClient = func() slack.Client {
		token := viper.GetString("alerts.slack.token")
		if token == "" {
			return nil
		}
		return slack.NewClient(token)
	}

	newPublisher = func() (events.Publisher, error) {
		switch t := viper.GetString("events.type"); t {
		case "", "none":
			return events.Noop{}, nil
		case "amqp":
			return events.NewAMQPPublisher(viper.GetString("events.amqp.url"), viper.GetString("events.amqp.exchange"))
		default:
			return nil, fmt.Errorf("unknown events type: %s", t)
		}
	}
)

func newLocker() (lock.Locker, error) {
	switch t := viper.GetString("lock.type"); t {
	case "", "local":
		return lock.NewLocal(), nil
	case "redis":
		return lock.NewRedisFromAddr(
			viper.GetString("lock.redis.addr"),
			viper.GetString("lock.redis.password"),
			viper.GetInt("lock.redis.db"),
			viper.GetDuration("lock.ttl"),
		), nil
	default:
		return nil, fmt.Errorf("unknown lock type: %s", t)
	}
}

func dispatcherLocation() (*time.Location, error) {
	tz := viper.GetString("dispatcher.timezone")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid dispatcher.timezone %q: %w", tz, err)
	}
	return loc, nil
}

// newDispatcher wires a Dispatcher from configuration. The returned function
// releases the resources it opened.
func newDispatcher(store kv.Storer) (*dispatcher.Dispatcher, func(), error) {
	loc, err := dispatcherLocation()
	if err != nil {
		return nil, nil, err
	}

	locker, err := newLocker()
	if err != nil {
		return nil, nil, err
	}

	publisher, err := newPublisher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	d := dispatcher.New(store, newSMSClient(), newEmailClient(),
		dispatcher.WithLocation(loc),
		dispatcher.WithRateLimit(viper.GetFloat64("dispatcher.rate_limit")),
		dispatcher.WithLocker(locker),
		dispatcher.WithPublisher(publisher),
		dispatcher.WithAttachmentResolver(attachment.NewHTTPResolver()),
		dispatcher.WithDryRun(viper.GetBool("dispatcher.dry_run")),
	)

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("failed to close event publisher", "error", err)
		}
		if r, ok := locker.(*lock.Redis); ok {
			if err := r.Close(); err != nil {
				slog.Warn("failed to close redis lock", "error", err)
			}
		}
	}
	return d, cleanup, nil
}
