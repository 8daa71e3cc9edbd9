package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/cirrus-iac/cirrus/pkg/core"
	"github.com/cirrus-iac/cirrus/pkg/manifest"
	"github.com/cirrus-iac/cirrus/pkg/snapshot"
	"github.com/cirrus-iac/cirrus/pkg/telemetry"
)

// loadManifest parses the manifest sources named by args, defaulting to the
// current directory.
func loadManifest(ctx context.Context, args []string) (*manifest.Manifest, error) {
	sources := args
	if len(sources) == 0 {
		sources = []string{"."}
	}

	loader := manifest.NewLoader(log.Logger)
	timer := telemetry.NewTimer()
	m, err := loader.Load(ctx, sources)

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		status := "success"
		if err != nil || (m != nil && len(m.Errors) > 0) {
			status = "error"
		}
		tel.Metrics.RecordManifestLoad("cue", status, timer.Duration())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return m, nil
}

// reportManifestErrors prints collected manifest errors and returns a
// terminal error when any exist.
func reportManifestErrors(m *manifest.Manifest) error {
	if len(m.Errors) == 0 {
		return nil
	}
	for _, e := range m.Errors {
		ev := log.Error().Str("message", e.Message)
		if e.File != "" {
			ev = ev.Str("file", e.File).Int("line", e.Line).Int("column", e.Column)
		}
		if e.Path != "" {
			ev = ev.Str("path", e.Path)
		}
		ev.Msg("Manifest error")
	}
	return fmt.Errorf("manifest has %d error(s)", len(m.Errors))
}

// synthesizeManifest loads, builds, and synthesizes in one step.
func synthesizeManifest(ctx context.Context, args []string) ([]*core.Document, error) {
	m, err := loadManifest(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := reportManifestErrors(m); err != nil {
		return nil, err
	}

	app, err := manifest.Build(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build construct tree: %w", err)
	}

	docs, err := core.NewSynthesizer(log.Logger).Synthesize(app)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	return docs, nil
}

// openStore opens and migrates the snapshot database at the --db path.
// Callers own the returned store and must Close it.
func openStore(ctx context.Context) (*snapshot.SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := snapshot.NewSQLiteStore(snapshot.Config{Path: dbPath})
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
	return store, nil
}
