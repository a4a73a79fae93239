package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hallpass-app/hallpass/internal/kv"
)

var scheduledDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a scheduled message",
	Long:    `Delete a scheduled message by its ID or a unique prefix of its short ID.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := datastoreNewStore(false)
		if err != nil {
			return fmt.Errorf("failed to create datastore: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return doScheduledDelete(ctx, store, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	scheduledCmd.AddCommand(scheduledDeleteCmd)
}

func doScheduledDelete(ctx context.Context, store kv.Storer, w io.Writer, id string) error {
	m, err := store.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, m.Kind, m.ID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	fmt.Fprintf(w, "Deleted %s %s\n", m.Kind, m.ShortID)
	return nil
}
