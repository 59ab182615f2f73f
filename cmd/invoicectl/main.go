/*
main.go - Application entry point

PURPOSE:
  Initializes and runs the invoicectl CLI. Loads the environment, sets up
  logging, and dispatches to the cobra command tree.

COMMANDS:
  generate [files...]   Run the generation pipeline (all specs by default)
  paid <file> [date]    Record a payment receipt
  turnover [--date]     Fiscal-year gross turnover report
  serve                 HTTP API server

GLOBAL FLAGS:
  --root        Data root directory (default ".", env INVOICE_ROOT)
  --log-level   trace, debug, info, warn, error (default "info")
  --log-format  console or json (default "console")

EXAMPLES:
  # Generate everything that changed
  invoicectl generate

  # Force-regenerate two specs
  invoicectl generate --force 2025-06-acme.yaml 2025-07-acme.yaml

  # Record a payment received today
  invoicectl paid 2025-06-acme.yaml

  # Serve the API on another port
  invoicectl serve --port 3000

SEE ALSO:
  - config.Load: directory layout under the data root
  - pipeline.Generator: what generate actually does
*/
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warp/invoice-engine/archive"
	"github.com/warp/invoice-engine/config"
	"github.com/warp/invoice-engine/logging"
	"github.com/warp/invoice-engine/pipeline"
)

var (
	flagRoot      string
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:           "invoicectl",
	Short:         "Invoice resolution and computation engine",
	Long:          "invoicectl resolves YAML invoice specifications through contracts and\nprofiles, computes billing and GST, and keeps the invoice registry.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Setup(logging.Config{Level: flagLogLevel, Format: flagLogFormat})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", defaultRoot(), "data root directory")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "log format (console, json)")
}

func defaultRoot() string {
	if root := os.Getenv("INVOICE_ROOT"); root != "" {
		return root
	}
	return "."
}

// loadConfig resolves the configured data root into a full configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(flagRoot)
}

// newGenerator wires the pipeline over a loaded configuration. The caller
// owns closing the returned store.
func newGenerator(cfg *config.Config) (*pipeline.Generator, *archive.Store, error) {
	store, err := archive.New(cfg.ArchivePath)
	if err != nil {
		return nil, nil, err
	}
	gen, err := pipeline.New(cfg, store, logging.WithComponent("invoicectl"))
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return gen, store, nil
}

func main() {
	// A missing .env is the normal case, not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
