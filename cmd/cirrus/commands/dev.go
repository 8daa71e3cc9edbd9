package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cirrus-iac/cirrus/pkg/core"
	"github.com/cirrus-iac/cirrus/pkg/diff"
)

func newDevCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev [path...]",
		Short: "Watch manifests and re-synthesize on change",
		Long: `Watch manifest sources and re-synthesize whenever they change.

After each synthesis the changed stacks are diffed against the previous
run, so edits show their template impact immediately.`,
		Example: `  # Watch the current directory
  cirrus dev

  # Watch a specific manifest directory
  cirrus dev ./infra`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			paths := args
			if len(paths) == 0 {
				paths = []string{"."}
			}
			for _, path := range paths {
				if err := watchRecursive(watcher, path); err != nil {
					return fmt.Errorf("failed to watch %s: %w", path, err)
				}
			}

			log.Info().Strs("paths", paths).Msg("Watching for manifest changes")

			baseline := runDevSynth(ctx, args, nil)
			return watchLoop(ctx, watcher, args, baseline)
		},
	}

	return cmd
}

// watchLoop reacts to file events with a debounce so editors that write
// multiple times per save trigger one synthesis.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, args []string, baseline map[string]*core.Document) error {
	var debounce *time.Timer
	resynth := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-resynth:
			baseline = runDevSynth(ctx, args, baseline)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".cue") {
				continue
			}

			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Manifest changed")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(300*time.Millisecond, func() {
				select {
				case resynth <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

// runDevSynth synthesizes once and diffs against the previous run. Errors are
// logged rather than terminating watch mode. Returns the new baseline, or the
// old one when synthesis failed.
func runDevSynth(ctx context.Context, args []string, baseline map[string]*core.Document) map[string]*core.Document {
	docs, err := synthesizeManifest(ctx, args)
	if err != nil {
		log.Error().Err(err).Msg("Synthesis failed")
		return baseline
	}

	engine := diff.NewEngine(diff.DefaultRules(), log.Logger)
	next := make(map[string]*core.Document, len(docs))

	for _, doc := range docs {
		next[doc.StackName] = doc

		old := baseline[doc.StackName]
		if old == nil {
			log.Info().
				Str("stack", doc.StackName).
				Int("resources", doc.Resources.Len()).
				Msg("Stack synthesized")
			continue
		}

		result := engine.Diff(old, doc)
		if result.Empty() {
			log.Info().Str("stack", doc.StackName).Msg("Stack unchanged")
			continue
		}

		fmt.Printf("Stack %s\n", doc.StackName)
		fmt.Print(diff.Render(result))
		fmt.Println()
	}

	return next
}

// watchRecursive adds path and all directories below it to the watcher.
func watchRecursive(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(path)
	}

	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}
