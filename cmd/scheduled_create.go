package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hallpass-app/hallpass/internal/model"
)

type createOptions struct {
	to          []string
	cc          []string
	bcc         []string
	subject     string
	body        string
	format      string
	date        string
	days        string
	mediaURLs   []string
	attachments []string
}

var createOpts createOptions

var scheduledCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Schedule a new message",
}

var scheduledCreateSMSCmd = &cobra.Command{
	Use:   "sms",
	Short: "Schedule an SMS",
	Example: `  hallpass scheduled create sms --to +15551234567 --body "Early dismissal at noon" --date 2024-03-01T11:00:00Z
  hallpass scheduled create sms --to +15551234567 --body "Library books due" --days mon,thu`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doScheduledCreate(cmd.Context(), cmd.OutOrStdout(), model.KindSMS, createOpts, time.Now())
	},
}

var scheduledCreateEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Schedule an email",
	Example: `  hallpass scheduled create email --to parents@example.com --subject "Weekly Update" \
    --body "**Spirit week** starts today" --format markdown --days monday`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doScheduledCreate(cmd.Context(), cmd.OutOrStdout(), model.KindEmail, createOpts, time.Now())
	},
}

func init() {
	scheduledCmd.AddCommand(scheduledCreateCmd)
	scheduledCreateCmd.AddCommand(scheduledCreateSMSCmd, scheduledCreateEmailCmd)

	for _, c := range []*cobra.Command{scheduledCreateSMSCmd, scheduledCreateEmailCmd} {
		c.Flags().StringSliceVar(&createOpts.to, "to", nil, "Recipient (repeatable for email)")
		c.Flags().StringVar(&createOpts.body, "body", "", "Message body, may use Go templates")
		c.Flags().StringVar(&createOpts.format, "format", "", "Body format: text, html or markdown")
		c.Flags().StringVar(&createOpts.date, "date", "", "Send once at this time (RFC 3339, or 2006-01-02 15:04 in the dispatcher time zone)")
		c.Flags().StringVar(&createOpts.days, "days", "", "Send every week on these days, e.g. mon,wed")
		c.MarkFlagRequired("to")
		c.MarkFlagRequired("body")
		c.MarkFlagsOneRequired("date", "days")
	}
	scheduledCreateSMSCmd.Flags().StringSliceVar(&createOpts.mediaURLs, "media-url", nil, "Media to attach to the SMS")
	scheduledCreateEmailCmd.Flags().StringVar(&createOpts.subject, "subject", "", "Email subject")
	scheduledCreateEmailCmd.Flags().StringSliceVar(&createOpts.cc, "cc", nil, "CC recipient")
	scheduledCreateEmailCmd.Flags().StringSliceVar(&createOpts.bcc, "bcc", nil, "BCC recipient")
	scheduledCreateEmailCmd.Flags().StringSliceVar(&createOpts.attachments, "attachment", nil, "URL of a file to attach")
}

func doScheduledCreate(ctx context.Context, w io.Writer, kind model.Kind, opts createOptions, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var m *model.ScheduledMessage
	switch kind {
	case model.KindSMS:
		if len(opts.to) != 1 {
			return fmt.Errorf("%w: an sms has exactly one recipient", model.ErrInvalidMessage)
		}
		m = model.NewSMS(opts.to[0], opts.body, opts.mediaURLs)
	case model.KindEmail:
		m = model.NewEmail(opts.to, opts.subject, opts.body)
		m.CC = opts.cc
		m.BCC = opts.bcc
		for _, u := range opts.attachments {
			m.Attachments = append(m.Attachments, model.Attachment{URL: u})
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", model.ErrInvalidMessage, string(kind))
	}
	m.Format = model.Format(strings.ToLower(opts.format))

	if opts.date != "" {
		loc, err := dispatcherLocation()
		if err != nil {
			return err
		}
		at, err := parseDate(opts.date, loc)
		if err != nil {
			return err
		}
		at = at.UTC()
		m.Date = &at
		if at.Before(now) {
			fmt.Fprintf(w, "Warning: %s is in the past, the message will be sent on the next run.\n", at.Format(time.RFC3339))
		}
	}
	if opts.days != "" {
		days, err := model.ParseWeekdays(opts.days)
		if err != nil {
			return err
		}
		m.Days = days
	}
	if m.Date != nil && len(m.Days) > 0 {
		fmt.Fprintln(w, "Warning: both --date and --days given, the message will be sent once.")
	}

	if err := m.Validate(); err != nil {
		return err
	}

	store, err := datastoreNewStore(false)
	if err != nil {
		return fmt.Errorf("failed to create datastore: %w", err)
	}
	defer store.Close()

	if err := store.AddMessage(ctx, m); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	fmt.Fprintf(w, "Scheduled %s %s (%s)\n", m.Kind, m.ShortID, describeSchedule(m))
	return nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse date %q", model.ErrInvalidMessage, s)
}

func describeSchedule(m *model.ScheduledMessage) string {
	switch m.Mode() {
	case model.ModeOneTime:
		return "once at " + m.Date.UTC().Format(time.RFC3339)
	case model.ModeRecurring:
		days := make([]string, len(m.Days))
		for i, d := range m.Days {
			days[i] = string(d)
		}
		return "every " + strings.Join(days, ", ")
	default:
		return "never"
	}
}
