// Package commands implements the casetrack operator CLI. Each command
// is a thin caller of the casestore persistence contract; no fraud
// logic lives here.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/casetrack/casetrack/pkg/casestore"
	"github.com/casetrack/casetrack/pkg/config"
	"github.com/casetrack/casetrack/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	dbPath     string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "casetrack",
		Short: "Casetrack - Fraud Case Tracking Store",
		Long: `Casetrack maintains the persistence layer for a fraud-case tracking
workflow: customer identity and verification data, associated suspicious
transactions, and case disposition with an append-only audit note trail.

Commands operate directly on the local SQLite store.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAddCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newRestoreCommand())

	return rootCmd
}

// environment assembles the shared pieces a command needs: validated
// configuration, telemetry, and an initialized, migrated store.
type environment struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *casestore.SQLiteStore
}

// setup loads configuration and opens the store. Callers must invoke
// teardown on every exit path so the store handle and telemetry are
// released.
func setup(ctx context.Context) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	telCfg := telemetry.DefaultConfig()
	telCfg.Logging = telemetry.LoggingConfig{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	telCfg.Metrics.Enabled = cfg.Metrics.Enabled
	telCfg.Metrics.ListenAddress = cfg.Metrics.ListenAddress
	if cfg.Metrics.Path != "" {
		telCfg.Metrics.Path = cfg.Metrics.Path
	}
	telCfg.Tracing.Enabled = cfg.Tracing.Enabled
	telCfg.Tracing.Exporter = cfg.Tracing.Exporter
	telCfg.Tracing.Endpoint = cfg.Tracing.Endpoint
	telCfg.Tracing.SamplingRate = cfg.Tracing.SamplingRate

	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := casestore.NewSQLiteStore(
		casestore.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime),
		},
		casestore.WithLogger(tel.Logger.NewComponentLogger("casestore")),
		casestore.WithMetrics(tel.Metrics),
	)
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &environment{cfg: cfg, tel: tel, store: store}, nil
}

// teardown releases the store and flushes telemetry.
func (e *environment) teardown(ctx context.Context) {
	_ = e.store.Close()
	_ = e.tel.Shutdown(ctx)
}
