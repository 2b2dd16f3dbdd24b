package commands

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/casetrack/casetrack/pkg/casestore"
	"github.com/casetrack/casetrack/pkg/telemetry"
)

func newAddCommand() *cobra.Command {
	var nc casestore.NewCase

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a fraud case with its first transaction",
		Long: `Create a new fraud case and the suspicious transaction that triggered
it, as one atomic operation.

When --customer-id is omitted, an identifier of the form CUST-<uuid> is
generated. Creating a case for an existing customer ID fails without
touching the stored case.`,
		Example: `  # Create a case with a generated customer ID
  casetrack add --name "Alice Smith" --card-last4 4242 \
    --question "First pet?" --answer "Rex" \
    --merchant "ACME Ltd" --amount 199.99 --location "Berlin" \
    --timestamp "2026-08-28 10:12:00"

  # Create a case with an explicit customer ID
  casetrack add --customer-id CUST-1001 --name "Bob Jones" ...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if nc.CustomerID == "" {
				nc.CustomerID = "CUST-" + uuid.NewString()
			}

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.teardown(ctx)

			ic := telemetry.StartOperation(env.tel.WithContext(ctx), "casestore.add_case")
			err = env.store.AddCase(ic.Ctx, nc)
			ic.End(err)

			if errors.Is(err, casestore.ErrDuplicateCase) {
				return fmt.Errorf("case %s already exists", nc.CustomerID)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Created case %s (status: %s)\n", nc.CustomerID, casestore.StatusPending)
			return nil
		},
	}

	cmd.Flags().StringVar(&nc.CustomerID, "customer-id", "", "customer identifier (generated when omitted)")
	cmd.Flags().StringVar(&nc.Name, "name", "", "customer display name")
	cmd.Flags().StringVar(&nc.CardLast4, "card-last4", "", "last four digits of the payment card")
	cmd.Flags().StringVar(&nc.SecurityQuestion, "question", "", "identity verification question")
	cmd.Flags().StringVar(&nc.SecurityAnswer, "answer", "", "identity verification answer")
	cmd.Flags().StringVar(&nc.Merchant, "merchant", "", "merchant of the suspicious transaction")
	cmd.Flags().StringVar(&nc.Amount, "amount", "", "transaction amount (stored verbatim)")
	cmd.Flags().StringVar(&nc.Location, "location", "", "transaction location")
	cmd.Flags().StringVar(&nc.Timestamp, "timestamp", "", "transaction timestamp (stored verbatim)")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("card-last4")
	_ = cmd.MarkFlagRequired("merchant")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
