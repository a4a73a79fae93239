package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/model"
)

var exportKind string

var scheduledExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scheduled messages as a YAML manifest",
	Long:  `Export scheduled messages as a YAML manifest that 'scheduled import' accepts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind model.Kind
		if exportKind != "" {
			k, err := model.ParseKind(exportKind)
			if err != nil {
				return err
			}
			kind = k
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
		return doScheduledExport(ctx, store, cmd.OutOrStdout(), kind)
	},
}

func init() {
	scheduledCmd.AddCommand(scheduledExportCmd)
	scheduledExportCmd.Flags().StringVar(&exportKind, "kind", "", "Only export sms or email messages")
}

type manifest struct {
	Messages []*model.ScheduledMessage `yaml:"messages"`
}

func doScheduledExport(ctx context.Context, store kv.Storer, w io.Writer, kind model.Kind) error {
	messages, err := store.ListMessages(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []*model.ScheduledMessage{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(manifest{Messages: messages}); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}
