package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hallpass-app/hallpass/internal/dispatcher"
	"github.com/hallpass-app/hallpass/internal/worker"
)

// dispatcherRunCmd represents the dispatcher run command
var dispatcherRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Send every message that is due now, once.",
	Long: `Send every message that is due now, once.

One-time messages whose date has passed are sent and then deleted. Weekly
messages whose days include today are sent and kept. The run report is
printed as JSON; the command exits non-zero if the run failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doDispatcherRun(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	dispatcherCmd.AddCommand(dispatcherRunCmd)
}

func doDispatcherRun(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := datastoreNewStore(false)
	if err != nil {
		return fmt.Errorf("failed to create datastore: %w", err)
	}
	defer store.Close()

	d, cleanup, err := newDispatcher(store)
	if err != nil {
		return err
	}
	defer cleanup()

	wk := worker.New(d, store, nil, newSlackClient(), worker.Config{
		AlertChannel: viper.GetString("alerts.slack.channel"),
	})
	report, runErr := wk.Dispatch(ctx)

	if err := writeReport(w, report, runErr); err != nil {
		return err
	}
	return runErr
}

type runOutput struct {
	*dispatcher.Report
	Error string `json:"error,omitempty"`
}

func writeReport(w io.Writer, report *dispatcher.Report, runErr error) error {
	if report == nil {
		report = &dispatcher.Report{}
	}
	out := runOutput{Report: report}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
