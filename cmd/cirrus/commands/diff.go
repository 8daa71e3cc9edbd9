package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cirrus-iac/cirrus/pkg/core"
	"github.com/cirrus-iac/cirrus/pkg/diff"
	"github.com/cirrus-iac/cirrus/pkg/telemetry"
)

func newDiffCommand() *cobra.Command {
	var (
		againstFile string
		stackName   string
		exitCode    bool
	)

	cmd := &cobra.Command{
		Use:   "diff [path...]",
		Short: "Diff a fresh synthesis against the deployed templates",
		Long: `Synthesize the manifests and compare each stack against its last
recorded snapshot, classifying every change as in-place, replacement,
or conditional replacement.

A stack with no snapshot history diffs against an empty template, so
every resource shows as an addition.`,
		Example: `  # Diff all stacks against their latest snapshots
  cirrus diff

  # Diff one stack against a template file
  cirrus diff --stack Api --against deployed.template.json

  # Structured output for tooling
  cirrus diff --json

  # Exit non-zero when there are changes
  cirrus diff --exit-code`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			docs, err := synthesizeManifest(ctx, args)
			if err != nil {
				return err
			}
			if stackName != "" {
				docs = filterStack(docs, stackName)
				if len(docs) == 0 {
					return fmt.Errorf("no stack named %s in manifest", stackName)
				}
			}
			if againstFile != "" && len(docs) != 1 {
				return fmt.Errorf("--against requires a single stack; use --stack to pick one")
			}

			engine := diff.NewEngine(diff.DefaultRules(), log.Logger)
			changed := false

			tel := telemetry.FromTelemetryContext(ctx)

			for _, doc := range docs {
				oldDoc, err := deployedDocument(cmd, againstFile, doc.StackName)
				if err != nil {
					return err
				}

				var result *diff.Result
				err = telemetry.RecordDiffOperation(ctx, doc.StackName, func() error {
					result = engine.Diff(oldDoc, doc)
					return nil
				})
				if err != nil {
					return err
				}
				if !result.Empty() {
					changed = true
				}
				if tel != nil {
					for _, rd := range result.Resources {
						tel.Metrics.RecordDiffChange(string(rd.Operation), string(rd.Classification))
					}
				}

				if jsonOutput {
					data, err := json.MarshalIndent(map[string]interface{}{
						"stack": doc.StackName,
						"diff":  result,
					}, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to encode diff: %w", err)
					}
					fmt.Println(string(data))
					continue
				}

				fmt.Printf("Stack %s\n", doc.StackName)
				fmt.Print(diff.Render(result))
				fmt.Println()
			}

			if exitCode && changed {
				return fmt.Errorf("templates differ from deployed state")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&againstFile, "against", "", "diff against a template file instead of the latest snapshot")
	cmd.Flags().StringVar(&stackName, "stack", "", "limit the diff to one stack")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "return a non-zero exit code when changes exist")

	return cmd
}

// deployedDocument resolves the old side of the diff: an explicit template
// file, the latest snapshot, or an empty document for never-deployed stacks.
func deployedDocument(cmd *cobra.Command, againstFile, stackName string) (*core.Document, error) {
	if againstFile != "" {
		data, err := os.ReadFile(againstFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file: %w", err)
		}
		doc, err := core.ParseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template file: %w", err)
		}
		doc.StackName = stackName
		return doc, nil
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer store.Close()

	snap, err := store.Latest(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if snap == nil {
		log.Debug().Str("stack", stackName).Msg("No snapshot history, diffing against empty template")
		return core.NewDocument(stackName), nil
	}
	return snap.Document()
}

func filterStack(docs []*core.Document, name string) []*core.Document {
	var out []*core.Document
	for _, doc := range docs {
		if doc.StackName == name {
			out = append(out, doc)
		}
	}
	return out
}
