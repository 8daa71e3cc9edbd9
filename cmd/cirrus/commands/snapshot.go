package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage recorded template snapshots",
		Long: `Inspect and prune the local snapshot history.

Snapshots record synthesized templates per stack and serve as the
deployed side of 'cirrus diff'.`,
	}

	cmd.AddCommand(newSnapshotListCommand())
	cmd.AddCommand(newSnapshotPruneCommand())

	return cmd
}

func newSnapshotListCommand() *cobra.Command {
	var (
		stackName string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots for a stack",
		Example: `  # List the last snapshots of the Api stack
  cirrus snapshot list --stack Api

  # Structured output
  cirrus snapshot list --stack Api --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stackName == "" {
				return fmt.Errorf("--stack is required")
			}

			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			defer store.Close()

			snaps, err := store.List(ctx, stackName, limit, 0)
			if err != nil {
				return fmt.Errorf("failed to list snapshots: %w", err)
			}

			if jsonOutput {
				data, err := json.MarshalIndent(snaps, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode snapshots: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if len(snaps) == 0 {
				fmt.Printf("No snapshots for stack %s.\n", stackName)
				return nil
			}
			for _, s := range snaps {
				fmt.Printf("%s  %s  %d resource(s)\n",
					s.CreatedAt.Format("2006-01-02 15:04:05"), s.ID, s.ResourceCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stackName, "stack", "", "stack to list snapshots for")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum snapshots to list")

	return cmd
}

func newSnapshotPruneCommand() *cobra.Command {
	var (
		stackName string
		keep      int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots, keeping the newest",
		Example: `  # Keep only the 10 newest snapshots of the Api stack
  cirrus snapshot prune --stack Api --keep 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stackName == "" {
				return fmt.Errorf("--stack is required")
			}

			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to open snapshot store: %w", err)
			}
			defer store.Close()

			deleted, err := store.Prune(ctx, stackName, keep)
			if err != nil {
				return fmt.Errorf("failed to prune snapshots: %w", err)
			}

			log.Info().
				Str("stack", stackName).
				Int("keep", keep).
				Int64("deleted", deleted).
				Msg("Snapshots pruned")
			return nil
		},
	}

	cmd.Flags().StringVar(&stackName, "stack", "", "stack to prune snapshots for")
	cmd.Flags().IntVar(&keep, "keep", 10, "number of newest snapshots to keep")

	return cmd
}
