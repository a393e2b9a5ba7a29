package commands

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "watch <instance>",
		Short: "Watch an instance file and re-solve on change",
		Long: `Solve an instance, then watch the file and re-solve whenever it
changes.

Intended for iterating on an instance: edit the file, see the new
schedule. Events are debounced so an editor's burst of writes triggers
one solve, and a broken intermediate state is reported without stopping
the watch. Stop with Ctrl-C.`,
		Example: `  # Watch an instance with a short budget per solve
  atelier watch instance.yaml --time-limit 10s

  # Watch with custom admission policies
  atelier watch instance.yaml --policy-dir ./policies`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			log.Info().Str("instance", path).Msg("Watching instance")

			admission, err := newAdmission(ctx, flags.policyDirs, flags.noPolicy)
			if err != nil {
				return err
			}

			sched, tel, err := newScheduler(flags.backendName, admission)
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.Background())

			// Serializes solves triggered from the debounce timer.
			var solveMu sync.Mutex
			solveOnce := func() {
				solveMu.Lock()
				defer solveMu.Unlock()

				p, _, err := loadProblem(ctx, path)
				if err != nil {
					log.Error().Err(err).Msg("Instance rejected")
					return
				}

				res, err := sched.Solve(ctx, p, flags.options())
				if err != nil {
					log.Error().Err(err).Msg("Solve failed")
					return
				}
				if err := writeResult(res, "", jsonOutput); err != nil {
					log.Error().Err(err).Msg("Failed to render result")
				}
			}
			solveOnce()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			// Watch the directory, not the file: editors replace files on
			// save, and the watch must survive the swap.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return err
			}

			var (
				debounceMu sync.Mutex
				pending    *time.Timer
			)
			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Name != path {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}

					debounceMu.Lock()
					if pending != nil {
						pending.Stop()
					}
					pending = time.AfterFunc(500*time.Millisecond, func() {
						log.Info().Str("instance", path).Msg("Instance changed, re-solving")
						solveOnce()
					})
					debounceMu.Unlock()

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Error().Err(err).Msg("Watcher error")
				}
			}
		},
	}

	flags.register(cmd)

	return cmd
}
