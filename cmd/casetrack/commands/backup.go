package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBackupCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the case database",
		Long: `Create a consistent hot copy of the case database using SQLite's
VACUUM INTO, then verify the copy's integrity. The live database stays
available for the duration.`,
		Example: `  casetrack backup --out cases-backup.sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if _, err := os.Stat(outFile); err == nil {
				return fmt.Errorf("backup target %s already exists", outFile)
			}

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.teardown(ctx)

			log.Info().Str("out", outFile).Msg("Creating backup")

			if err := env.store.BackupTo(ctx, outFile); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			if err := verifyIntegrity(ctx, outFile); err != nil {
				_ = os.Remove(outFile)
				return fmt.Errorf("backup verification failed: %w", err)
			}

			fmt.Printf("Backup written to %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "backup file path")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// verifyIntegrity opens the file and runs SQLite's integrity check
// against it. The "sqlite" driver is registered by the casestore import.
func verifyIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}
	return nil
}
