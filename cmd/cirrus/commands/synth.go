package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cirrus-iac/cirrus/pkg/core"
	"github.com/cirrus-iac/cirrus/pkg/telemetry"
)

func newSynthCommand() *cobra.Command {
	var (
		outDir string
		format string
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "synth [path...]",
		Short: "Synthesize CloudFormation templates",
		Long: `Synthesize CloudFormation templates from CUE manifests.

Synthesis:
  - Loads and unifies the manifest sources
  - Builds the construct tree and resolves all tokens
  - Assigns stable logical IDs per stack
  - Orders resources by dependency, then writes one template per stack`,
		Example: `  # Synthesize manifests in the current directory
  cirrus synth

  # Synthesize a specific manifest into ./out as YAML
  cirrus synth ./infra --out ./out --format yaml

  # Synthesize and record a snapshot per stack
  cirrus synth --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported format: %s", format)
			}

			ctx := telemetry.WithSynthContext(cmd.Context(), "cirrus")
			docs, err := synthesizeManifest(ctx, args)
			if err != nil {
				telemetry.EndSynthContext(ctx, "error", err)
				return err
			}
			telemetry.EndSynthContext(ctx, "success", nil)

			tel := telemetry.FromTelemetryContext(ctx)

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			for _, doc := range docs {
				data, err := encodeDocument(doc, format)
				if err != nil {
					return fmt.Errorf("failed to encode stack %s: %w", doc.StackName, err)
				}

				path := filepath.Join(outDir, fmt.Sprintf("%s.template.%s", doc.StackName, format))
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("failed to write template: %w", err)
				}

				if tel != nil {
					tel.Metrics.SetResourceCount(doc.StackName, float64(doc.Resources.Len()))
				}

				log.Info().
					Str("stack", doc.StackName).
					Str("path", path).
					Int("resources", doc.Resources.Len()).
					Msg("Template synthesized")
			}

			if save {
				store, err := openStore(ctx)
				if err != nil {
					return fmt.Errorf("failed to open snapshot store: %w", err)
				}
				defer store.Close()

				for _, doc := range docs {
					snap, err := store.Save(ctx, doc)
					if err != nil {
						return fmt.Errorf("failed to save snapshot for %s: %w", doc.StackName, err)
					}
					if tel != nil {
						tel.Metrics.RecordSnapshotSaved(snap.StackName)
					}
					log.Info().
						Str("stack", snap.StackName).
						Str("id", snap.ID).
						Msg("Snapshot saved")
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "cirrus.out", "output directory for templates")
	cmd.Flags().StringVar(&format, "format", "json", "template format (json or yaml)")
	cmd.Flags().BoolVar(&save, "save", false, "record a snapshot per synthesized stack")

	return cmd
}

func encodeDocument(doc *core.Document, format string) ([]byte, error) {
	if format == "yaml" {
		return doc.EncodeYAML()
	}
	return doc.EncodeJSON()
}
