package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "stockradar - instrument tracking, indicators and selection",
	Long: `stockradar keeps a persistent bar series synchronized against
rate-limited upstream market data sources, derives technical
indicators and ranks the tracked universe by a multi-factor score.

Examples:
  go run ./cmd/radar collect
  go run ./cmd/radar scheduler
  go run ./cmd/radar pick
  go run ./cmd/radar score 600519`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy file (default from STRATEGY_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
