package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/casetrack/casetrack/pkg/casestore"
	"github.com/casetrack/casetrack/pkg/telemetry"
)

func newShowCommand() *cobra.Command {
	var byName string

	cmd := &cobra.Command{
		Use:   "show [customer-id]",
		Short: "Show a case and its most recent transaction",
		Long: `Look up a single case by customer ID, or by display name with --name.
Name matching is case-insensitive on the full stored value.

A case that does not exist is reported as not found, never as an error.`,
		Example: `  casetrack show CUST-1001

  casetrack show --name "alice smith"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 0 && byName == "" {
				return fmt.Errorf("either a customer ID argument or --name is required")
			}

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.teardown(ctx)

			var (
				detail *casestore.CaseDetail
				found  bool
			)
			tctx := env.tel.WithContext(ctx)
			if len(args) == 1 {
				ic := telemetry.StartOperation(tctx, "casestore.find_by_id")
				detail, found = env.store.FindCaseByID(ic.Ctx, args[0])
				ic.End(nil)
			} else {
				ic := telemetry.StartOperation(tctx, "casestore.find_by_name")
				detail, found = env.store.FindCaseByName(ic.Ctx, byName)
				ic.End(nil)
			}

			if !found {
				fmt.Println("No matching case found")
				return nil
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(detail)
			}

			printCaseDetail(detail)
			return nil
		},
	}

	cmd.Flags().StringVar(&byName, "name", "", "look up by customer display name")

	return cmd
}

func printCaseDetail(d *casestore.CaseDetail) {
	fmt.Printf("Customer:   %s (%s)\n", d.Name, d.CustomerID)
	fmt.Printf("Card:       ****%s\n", d.CardLast4)
	fmt.Printf("Status:     %s\n", d.Status)
	fmt.Printf("Created:    %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:    %s\n", d.UpdatedAt.Format("2006-01-02 15:04:05"))
	if d.Notes != "" {
		fmt.Printf("Notes:      %s\n", d.Notes)
	}
	if d.Transaction != nil {
		fmt.Printf("Latest transaction:\n")
		fmt.Printf("  Merchant: %s\n", d.Transaction.Merchant)
		fmt.Printf("  Amount:   %s\n", d.Transaction.Amount)
		fmt.Printf("  Location: %s\n", d.Transaction.Location)
		fmt.Printf("  Time:     %s\n", d.Transaction.Timestamp)
	} else {
		fmt.Printf("Latest transaction: none\n")
	}
}
