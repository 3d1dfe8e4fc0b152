package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autotrader",
	Short: "Rule-based systematic equity trading engine",
	Long: `AutoTrader runs rule-based entry and exit strategies over a
configured stock universe, screens candidates against technical and
fundamental rule sets, and routes the resulting orders to a paper or
HTTP broker.

Usage:
  go run ./cmd/autotrader [command]

Examples:
  go run ./cmd/autotrader trade --once
  go run ./cmd/autotrader screen rsi fundamental --combine weighted
  go run ./cmd/autotrader serve`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
