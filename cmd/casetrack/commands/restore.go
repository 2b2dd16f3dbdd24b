package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/casetrack/casetrack/pkg/config"
)

func newRestoreCommand() *cobra.Command {
	var (
		fromFile string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the case database from a backup",
		Long: `Replace the case database with a backup file. The backup's integrity
is verified before anything is touched, and an existing database is only
overwritten with --force.

No other process may have the database open during a restore.`,
		Example: `  casetrack restore --from cases-backup.sqlite --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			target := cfg.Database.Path

			if err := verifyIntegrity(ctx, fromFile); err != nil {
				return fmt.Errorf("refusing to restore: %w", err)
			}

			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("database %s already exists (use --force to overwrite)", target)
			}

			// Stale WAL/SHM files would shadow the restored content.
			for _, sidecar := range []string{target + "-wal", target + "-shm"} {
				if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to remove %s: %w", sidecar, err)
				}
			}

			if err := copyFile(fromFile, target); err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if err := verifyIntegrity(ctx, target); err != nil {
				return fmt.Errorf("restored database failed verification: %w", err)
			}

			log.Info().Str("from", fromFile).Str("to", target).Msg("Database restored")
			fmt.Printf("Restored %s from %s\n", target, fromFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFile, "from", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing database")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
