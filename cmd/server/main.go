/*
main.go - Application entry point

PURPOSE:
  The fleet engine binary: an HTTP server plus one-shot commands that load
  the SQLite dataset, run a report or move data in and out, and exit.

COMMANDS:
  serve                              Run the HTTP API until SIGINT/SIGTERM
  import <fleet.json> [invoices.json] Replace the stored datasets from JSON documents
  export [--dir .]                   Write fleet.json and invoices.json
  summary --from --to [--vehicle]    Print period totals
  interest [--as-of] [--rate]        Print the interest report

CONFIGURATION:
  .env is loaded first (missing file is fine), then config.Load() reads
  fleet.toml and FLEET_* variables. --db overrides database.path.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (http.shutdown_timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server serve --db ./data/fleet.db

  # Load a legacy export, then print March
  ./server import trucks.json invoices.json
  ./server summary --from 2025-03-01 --to 2025-03-31

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and defaults
  - factory/dataset.go: JSON documents
*/
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/fleet-engine/config"
	"github.com/warp/fleet-engine/logger"
	"github.com/warp/fleet-engine/store/sqlite"
)

var version = "1.0.0"

// app carries what every command needs once flags are parsed.
type app struct {
	dbPath string
	cfg    *config.Config
	log    *zap.Logger
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fleet",
		Short: "Fleet profitability and invoice interest engine",
		Long: `Fleet computes per-trip profitability for a trucking fleet,
allocates fixed costs over distance, totals periods, and computes
late-payment interest on customer invoices.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				logger.Sync(a.log)
			}
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides database.path; \":memory:\" keeps nothing)")

	root.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newSummaryCmd(a),
		newInterestCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	a.cfg = cfg

	log, err := logger.New(cfg.Logger())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))
	return nil
}

func (a *app) openStore() (*sqlite.Store, error) {
	st, err := sqlite.New(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.Database.Path, err)
	}
	a.log.Debug("database opened", zap.String("path", a.cfg.Database.Path))
	return st, nil
}
