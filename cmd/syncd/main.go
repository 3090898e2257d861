// syncd is the deal sync daemon: it mirrors the affiliate feed into Firestore
// and keeps the storefront's aggregates, caches and search index fresh.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "Deal feed sync daemon",
	Long: `syncd mirrors affiliate programmes and promotions into Firestore and
maintains the derived data the storefront reads: deal counts, page caches
and the search index.

Run "syncd serve" for the scheduled daemon, or any of the job commands for
a single run.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Local development convenience; in production the environment is
		// already set.
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
