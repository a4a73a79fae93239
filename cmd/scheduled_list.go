package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
	"github.com/hallpass-app/hallpass/internal/scheduler"
)

var listKind string

// scheduledListCmd represents the list command
var scheduledListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled messages",
	Long:  `List scheduled messages, soonest first, with the next time each is due.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind model.Kind
		if listKind != "" {
			k, err := model.ParseKind(listKind)
			if err != nil {
				return err
			}
			kind = k
		}

		loc, err := dispatcherLocation()
		if err != nil {
			return err
		}

		store, err := datastoreNewStore(true)
		if err != nil {
			return fmt.Errorf("failed to create datastore: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return doScheduledList(ctx, store, cmd.OutOrStdout(), kind, time.Now(), loc)
	},
}

func init() {
	scheduledCmd.AddCommand(scheduledListCmd)
	scheduledListCmd.Flags().StringVar(&listKind, "kind", "", "Only list sms or email messages")
}

type listedMessage struct {
	msg  *model.ScheduledMessage
	next time.Time
	ok   bool
}

func doScheduledList(ctx context.Context, store kv.Storer, w io.Writer, kind model.Kind, now time.Time, loc *time.Location) error {
	messages, err := store.ListMessages(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	if len(messages) == 0 {
		fmt.Fprintln(w, "No scheduled messages.")
		return nil
	}

	listed := make([]listedMessage, 0, len(messages))
	for _, m := range messages {
		next, ok := scheduler.Next(m, now, loc)
		listed = append(listed, listedMessage{msg: m, next: next, ok: ok})
	}
	sort.SliceStable(listed, func(i, j int) bool {
		if listed[i].ok != listed[j].ok {
			return listed[i].ok
		}
		return listed[i].next.Before(listed[j].next)
	})

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Kind", "To", "Summary", "Schedule", "Next")
	for _, l := range listed {
		next := "never"
		if l.ok {
			next = l.next.Format("Mon 2006-01-02 15:04 MST")
			if !l.next.After(now) {
				next = "due now"
			}
		}
		table.Append([]string{
			l.msg.ShortID,
			string(l.msg.Kind),
			strings.Join(l.msg.To, ", "),
			summary(l.msg),
			describeSchedule(l.msg),
			next,
		})
	}
	table.Render()
	return nil
}

func summary(m *model.ScheduledMessage) string {
	s := m.Subject
	if s == "" {
		s = m.Body
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 40 {
		s = string(r[:39]) + "…"
	}
	return s
}
