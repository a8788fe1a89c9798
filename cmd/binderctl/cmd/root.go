// Package cmd provides the binderctl commands for quoting printings against the catalog.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codyseavey/tcg-binder/internal/config"
	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/services"
)

var (
	cfgFile string
	verbose bool
	cfg     = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "binderctl",
	Short: "Quote card printings from the command line",
	Long: `binderctl resolves printing prices the same way the binder service does.

Examples:
  binderctl quote neo 1 --finish foil
  binderctl enrich ./wants.yaml`,
	SilenceUsage: true,
}

// Execute runs the CLI; cancelling ctx stops an in-flight batch
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (same format as the server)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(enrichCmd)
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	// -v overrides whatever LOG_LEVEL or the config file chose
	if verbose {
		cfg.Log.Level = "debug"
	}
	logging.Initialize(cfg.Log)
}

// newQuoteService builds the resolver from the loaded config
func newQuoteService() (*services.PriceQuoteService, error) {
	cache, err := services.NewPriceCache(cfg.Pricing.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create price cache: %w", err)
	}
	return services.NewPriceQuoteService(services.NewScryfallService(cfg.Pricing.ScryfallBaseURL), cache), nil
}
