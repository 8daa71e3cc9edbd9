package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cirrus-iac/cirrus/pkg/core"
	"github.com/cirrus-iac/cirrus/pkg/manifest"
	"github.com/cirrus-iac/cirrus/pkg/policy"
	"github.com/cirrus-iac/cirrus/pkg/telemetry"
)

func newValidateCommand() *cobra.Command {
	var (
		strict      bool
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate manifests, construct trees, and policies",
		Long: `Validate CUE manifests end to end.

This command checks:
  - CUE syntax and manifest structure
  - Construct tree validity (names, references, dependency cycles)
  - Policy compliance (OPA/Rego) against the synthesized templates`,
		Example: `  # Validate manifests in the current directory
  cirrus validate

  # Validate a specific directory with extra policies
  cirrus validate ./infra --policy ./policies

  # Treat warnings as failures
  cirrus validate --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, err := loadManifest(ctx, args)
			if err != nil {
				return err
			}
			if err := reportManifestErrors(m); err != nil {
				return err
			}

			app, err := manifest.Build(m)
			if err != nil {
				return fmt.Errorf("failed to build construct tree: %w", err)
			}

			docs, err := core.NewSynthesizer(log.Logger).Synthesize(app)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			engine, err := policy.NewEngine(log.Logger)
			if err != nil {
				return fmt.Errorf("failed to create policy engine: %w", err)
			}
			if len(policyPaths) > 0 {
				if err := engine.LoadPolicies(ctx, policyPaths); err != nil {
					return err
				}
			}

			tel := telemetry.FromTelemetryContext(ctx)
			blocked := false
			warned := false
			for _, doc := range docs {
				result, err := engine.EvaluateDocument(ctx, doc)
				if err != nil {
					return fmt.Errorf("policy evaluation failed for %s: %w", doc.StackName, err)
				}

				for _, v := range result.Violations {
					ev := log.Warn()
					if v.Severity == policy.SeverityError || v.Severity == policy.SeverityCritical {
						ev = log.Error()
					}
					ev.Str("policy", v.Policy).
						Str("stack", v.Stack).
						Str("resource", v.Resource).
						Str("severity", string(v.Severity)).
						Msg(v.Message)
				}
				for _, w := range result.Warnings {
					log.Warn().Str("stack", doc.StackName).Msg(w)
				}

				if tel != nil {
					tel.Metrics.RecordValidationFailures(doc.StackName, len(result.Violations))
				}
				if !result.Allowed {
					blocked = true
				}
				if len(result.Violations) > 0 {
					warned = true
				}
			}

			if blocked {
				return fmt.Errorf("policy violations block this configuration")
			}
			if strict && warned {
				return fmt.Errorf("policy warnings present and --strict is set")
			}

			log.Info().Int("stacks", len(docs)).Msg("Validation passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat policy warnings as failures")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")

	return cmd
}
