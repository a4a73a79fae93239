package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/migration"
)

var migrateList bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending datastore migrations.",
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
		return doMigrate(ctx, store, cmd.OutOrStdout(), migrateList)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "Only list pending migrations")
}

func doMigrate(ctx context.Context, store kv.Storer, w io.Writer, listOnly bool) error {
	pending, err := migration.Pending(ctx, store)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(w, "No pending migrations.")
		return nil
	}

	for _, m := range pending {
		fmt.Fprintf(w, "v%d: %s\n", m.Version(), m.Description())
	}
	if listOnly {
		return nil
	}

	if err := migration.Apply(ctx, store); err != nil {
		return err
	}
	fmt.Fprintf(w, "Applied %d migration(s).\n", len(pending))
	return nil
}
