// Package cmd defines the journal-crawler command line.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/journal-email-crawler/internal/app"
	"github.com/JakeFAU/journal-email-crawler/internal/config"
	"github.com/JakeFAU/journal-email-crawler/internal/pipeline"
)

// Runner is the part of the application the commands drive. It lets tests
// swap in a fake.
type Runner interface {
	Run(ctx context.Context, urls []string) (pipeline.Summary, error)
	Close(ctx context.Context) error
}

// newRunner is the application factory. It's a variable so tests can
// replace it.
var newRunner = func(ctx context.Context, cfg config.Config) (Runner, error) {
	return app.Build(ctx, cfg)
}

// loadConfig is replaced in tests that should not read the environment.
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "journal-crawler",
		Short: "Collects author contact emails from journal volumes.",
		Long: `journal-crawler reads a list of journal URLs, discovers each journal's
volumes, extracts author names and emails, and writes one result file per
journal.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.AddCommand(newCrawlCmd(&cfgFile))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
