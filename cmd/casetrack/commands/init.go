package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the case database",
		Long: `Create the case database and its schema.

Safe to run repeatedly: an already-initialized database is left
unchanged.`,
		Example: `  # Initialize using the configured database path
  casetrack init

  # Initialize a specific database file
  casetrack init --db /var/lib/casetrack/fraud.sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.teardown(ctx)

			if err := env.store.HealthCheck(ctx); err != nil {
				return fmt.Errorf("store health check failed: %w", err)
			}

			log.Info().Str("path", env.cfg.Database.Path).Msg("Database initialized")
			fmt.Printf("Initialized case database at %s\n", env.cfg.Database.Path)
			return nil
		},
	}

	return cmd
}
