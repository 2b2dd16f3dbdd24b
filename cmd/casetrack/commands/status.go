package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/casetrack/casetrack/pkg/casestore"
	"github.com/casetrack/casetrack/pkg/telemetry"
)

func newStatusCommand() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "status <customer-id> <status>",
		Short: "Update a case's status and append an audit note",
		Long: `Overwrite the case status and append a timestamped note to the case's
audit trail. The status value is free-form; "pending", "confirmed", and
"cleared" are conventional.`,
		Example: `  casetrack status CUST-1001 confirmed --note "cardholder denied the charge"

  casetrack status CUST-1001 cleared --note "verified with customer"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			customerID, status := args[0], args[1]

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.teardown(ctx)

			ic := telemetry.StartOperation(env.tel.WithContext(ctx), "casestore.update_status")
			err = env.store.UpdateStatus(ic.Ctx, customerID, status, note)
			ic.End(err)

			if errors.Is(err, casestore.ErrNotFound) {
				return fmt.Errorf("no case for customer %s", customerID)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Case %s set to %s\n", customerID, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "audit note to append")
	_ = cmd.MarkFlagRequired("note")

	return cmd
}
