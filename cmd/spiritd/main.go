package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:           "spiritd",
		Short:         "Spiritual progress scoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&opts.scoringPath, "scoring-config", "", "override SCORING_CONFIG_PATH")

	root.AddCommand(newServeCmd(&opts))
	root.AddCommand(newMigrateCmd(&opts))
	root.AddCommand(newScoreCmd(&opts))
	root.AddCommand(newResetMomentumCmd(&opts))
	return root
}
