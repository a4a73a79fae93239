package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	hphttp "github.com/hallpass-app/hallpass/internal/http"
	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/sourcer"
)

var scheduledImportCmd = &cobra.Command{
	Use:   "import <url|file>...",
	Short: "Import scheduled messages from YAML manifests",
	Long: `Import scheduled messages from YAML manifests.

Manifests are fetched over http(s) or read from disk, validated against the
manifest schema and written to the datastore. Messages keep their id across
imports, so importing a manifest again updates it in place.`,
	Args: cobra.MinimumNArgs(1),
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
		s := sourcer.NewSourcer(sourcer.NewDefaultFetcher(hphttp.NewClient()), sourcer.NewYAMLParser())
		return doScheduledImport(ctx, store, s, cmd.OutOrStdout(), args, time.Now())
	},
}

func init() {
	scheduledCmd.AddCommand(scheduledImportCmd)
}

func doScheduledImport(ctx context.Context, store kv.Storer, s sourcer.Sourcer, w io.Writer, locations []string, now time.Time) error {
	for _, loc := range locations {
		u, err := sourceURL(loc)
		if err != nil {
			return err
		}

		source, _, err := s.Source(ctx, u)
		if err != nil {
			return err
		}

		res, err := sourcer.Import(ctx, store, source, now)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", u, err)
		}
		fmt.Fprintf(w, "%s: %d added, %d updated, %d expired\n", loc, res.Added, res.Updated, res.Expired)
	}
	return nil
}

// sourceURL turns a bare path into a file:// URL.
func sourceURL(loc string) (string, error) {
	if u, err := url.Parse(loc); err == nil && u.Scheme != "" {
		return loc, nil
	}
	abs, err := filepath.Abs(loc)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}
