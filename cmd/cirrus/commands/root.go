package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cirrus-iac/cirrus/pkg/telemetry"
)

var (
	// Global flags
	dbPath      string
	verbose     bool
	jsonOutput  bool
	traceOutput bool
	metricsAddr string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cirrus",
		Short: "Cirrus - CloudFormation template synthesizer",
		Long: `Cirrus synthesizes CloudFormation templates from CUE manifests and diffs
them against previously deployed versions.

Features:
  - Typed manifests via CUE
  - Light procedural expressions via Starlark
  - Deterministic template synthesis
  - Replacement-aware template diffing
  - Local snapshot history in SQLite
  - Policy enforcement via OPA/Rego`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			tel, err := setupTelemetry(version)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			cmd.SetContext(tel.WithContext(cmd.Context()))
			if err := tel.StartMetricsServer(); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if tel := telemetry.FromTelemetryContext(cmd.Context()); tel != nil {
				_ = tel.Shutdown(context.Background())
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ".cirrus/snapshots.db", "snapshot database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&traceOutput, "trace", false, "emit spans to stdout")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address")

	// Add subcommands
	rootCmd.AddCommand(newSynthCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newSnapshotCommand())
	rootCmd.AddCommand(newDevCommand())

	return rootCmd
}

// setupTelemetry builds the telemetry stack from the global flags.
func setupTelemetry(version string) (*telemetry.Telemetry, error) {
	var cfg *telemetry.Config
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		cfg = telemetry.DevelopmentConfig()
	} else {
		cfg = telemetry.DefaultConfig()
	}
	cfg.ServiceVersion = version

	if traceOutput {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "stdout"
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsAddr
	}

	return telemetry.NewTelemetry(cfg)
}
