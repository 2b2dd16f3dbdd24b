package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of the case queue",
		Long: `Print the case listing and refresh it whenever the database file
changes on disk. When metrics are enabled in the configuration, the
Prometheus endpoint is served for the lifetime of the watch.

Runs until interrupted.`,
		Example: `  casetrack watch

  # Coalesce bursts of writes into one refresh per 2s
  casetrack watch --debounce 2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.teardown(ctx)

			if env.cfg.Metrics.Enabled {
				if err := env.tel.StartMetricsServer(); err != nil {
					return fmt.Errorf("failed to start metrics server: %w", err)
				}
				log.Info().Str("addr", env.cfg.Metrics.ListenAddress).Msg("Serving metrics")
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create file watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the directory: SQLite writes land on the -wal and
			// -shm siblings, and the database file itself may be
			// replaced by a restore.
			dbPath := env.cfg.Database.Path
			dir := filepath.Dir(dbPath)
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}

			base := filepath.Base(dbPath)
			printSummaries(env.store.ListAllCases(ctx))

			var (
				pending bool
				// No tick until the first relevant event arrives.
				debounce = time.NewTimer(interval)
			)
			debounce.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !strings.HasPrefix(filepath.Base(event.Name), base) {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					if !pending {
						pending = true
						debounce.Reset(interval)
					}

				case <-debounce.C:
					pending = false
					fmt.Println()
					printSummaries(env.store.ListAllCases(ctx))

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("File watcher error")
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "debounce", 500*time.Millisecond, "delay before refreshing after a change")

	return cmd
}
