package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/workcell-labs/foundry/internal/config"
	"github.com/workcell-labs/foundry/internal/observability"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Policy-gated action selection for the task dispatcher",
	Long: `foundry decides how a task should be executed: which strategy, how many
candidates, and under what resource budgets. Decisions combine static
routing rules, historical outcomes, and an optional learned policy, and
always resolve to a complete, auditable plan.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "foundry.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(vocabCmd)
}

// loadConfig loads the configuration honoring --config, falling back to
// defaults when the file does not exist.
func loadConfig() (*config.Config, error) {
	return config.NewLoader(config.NewValidator()).LoadWithDefaults(configPath)
}

// newLogger builds the process logger from config, with --verbose forcing
// debug level.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(os.Stderr, level, cfg.Logging.Format)
}
