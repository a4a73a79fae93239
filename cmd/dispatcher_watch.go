package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hallpass-app/hallpass/internal/dispatcher"
	hphttp "github.com/hallpass-app/hallpass/internal/http"
	"github.com/hallpass-app/hallpass/internal/poller"
	"github.com/hallpass-app/hallpass/internal/sourcer"
	"github.com/hallpass-app/hallpass/internal/worker"
)

// dispatcherWatchCmd represents the dispatcher watch command
var dispatcherWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Dispatch on a schedule and serve the trigger endpoint.",
	Long: `Dispatch on a schedule and serve the trigger endpoint.

Runs the dispatcher on dispatcher.schedule (a five-field cron expression),
re-imports the manifests in source.urls when they change, and serves
POST /dispatch, POST /refresh and GET /healthz on http.port. SIGHUP and
POST /refresh re-import the sources and dispatch immediately.

Every run sends each recurring message whose day matches, so a schedule that
fires more than once a day sends those messages more than once that day. The
default runs once a day at 07:00 in dispatcher.timezone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return doDispatcherWatch(ctx)
	},
}

func init() {
	dispatcherCmd.AddCommand(dispatcherWatchCmd)

	dispatcherWatchCmd.Flags().String("schedule", "", "Cron schedule for dispatch runs (default \"0 7 * * *\"); recurring messages are sent on every run on their day")
	viper.BindPFlag("dispatcher.schedule", dispatcherWatchCmd.Flags().Lookup("schedule"))
	dispatcherWatchCmd.Flags().Int("port", 0, "Port for the trigger and health endpoints")
	viper.BindPFlag("http.port", dispatcherWatchCmd.Flags().Lookup("port"))
}

// runnerFunc adapts a function to the http.Runner interface.
type runnerFunc func(ctx context.Context) (*dispatcher.Report, error)

func (f runnerFunc) Run(ctx context.Context) (*dispatcher.Report, error) { return f(ctx) }

func doDispatcherWatch(ctx context.Context) error {
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

	loc, err := dispatcherLocation()
	if err != nil {
		return err
	}

	p := poller.New(sourcer.NewSourcer(sourcer.NewDefaultFetcher(hphttp.NewClient()), sourcer.NewYAMLParser()))
	wk := worker.New(d, store, p, newSlackClient(), worker.Config{
		Schedule:        viper.GetString("dispatcher.schedule"),
		Location:        loc,
		RefreshInterval: viper.GetDuration("source.refresh_interval"),
		SourceURLs:      viper.GetStringSlice("source.urls"),
		AlertChannel:    viper.GetString("alerts.slack.channel"),
	})

	router := hphttp.NewRouter(runnerFunc(wk.Dispatch), viper.GetString("http.trigger_token"), hphttp.WithRefresher(wk))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wk.Run(ctx)
	})
	g.Go(func() error {
		return hphttp.Start(ctx, viper.GetInt("http.port"), router)
	})
	return g.Wait()
}
