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
)

// deliveriesCmd represents the deliveries command
var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Inspect the delivery log",
}

var deliveriesLimit int

var deliveriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List send attempts, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := datastoreNewStore(true)
		if err != nil {
			return fmt.Errorf("failed to create datastore: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return doDeliveriesList(ctx, store, cmd.OutOrStdout(), deliveriesLimit)
	},
}

func init() {
	rootCmd.AddCommand(deliveriesCmd)
	deliveriesCmd.AddCommand(deliveriesListCmd)
	deliveriesListCmd.Flags().IntVar(&deliveriesLimit, "limit", 50, "Maximum number of deliveries to show (0 for all)")
}

func doDeliveriesList(ctx context.Context, store kv.Storer, w io.Writer, limit int) error {
	deliveries, err := store.ListDeliveries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list deliveries: %w", err)
	}

	sort.SliceStable(deliveries, func(i, j int) bool {
		return deliveries[i].Timestamp.After(deliveries[j].Timestamp)
	})
	if limit > 0 && len(deliveries) > limit {
		deliveries = deliveries[:limit]
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Message", "Kind", "To", "Status", "Provider ID", "Error", "Timestamp")
	for _, d := range deliveries {
		table.Append([]string{
			d.ShortID,
			d.MessageID,
			string(d.Kind),
			strings.Join(d.To, ", "),
			string(d.Status),
			d.ProviderID,
			d.Error,
			d.Timestamp.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}
