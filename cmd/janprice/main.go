// Package main provides the janprice command line: reconciliation runs,
// scheduled runs and ledger export.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guarzo/janprice/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "janprice",
	Short: "Compare Amazon reference prices with BOOKOFF listings",
	Long: `janprice walks Amazon catalog candidates, looks each JAN code up on the
BOOKOFF online store and records every product the store sells below the
Amazon price. Products at least 35% cheaper are flagged.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Development logging at debug level")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the environment and applies the verbose flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}
