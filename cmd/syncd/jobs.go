package main

import (
	"github.com/spf13/cobra"
)

// One-shot commands, one per job. Useful for cron setups and for running a
// job by hand after a config change.
func init() {
	for _, job := range []struct {
		name  string
		short string
	}{
		{jobSyncBrands, "Mirror joined affiliate programmes into the brands collection"},
		{jobSyncPromotions, "Reconcile the promotion feed and sweep expired deals"},
		{jobSweepExpired, "Deactivate promotions whose expiry has passed"},
		{jobUpdateCounts, "Recompute per-brand and per-category deal counts"},
		{jobRefreshCaches, "Rebuild the storefront page caches"},
		{jobSearchIndex, "Rebuild the search index"},
	} {
		name := job.name
		rootCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: job.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := newApp(cmd.Context())
				if err != nil {
					return err
				}
				defer app.close()
				return app.runOnce(cmd.Context(), name)
			},
		})
	}
}
