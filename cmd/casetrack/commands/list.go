package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/casetrack/casetrack/pkg/casestore"
	"github.com/casetrack/casetrack/pkg/telemetry"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all cases, most recently updated first",
		Long: `List every case as a reduced summary. Security questions, answers, and
audit notes are intentionally excluded from the listing.`,
		Example: `  casetrack list

  casetrack list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.teardown(ctx)

			ic := telemetry.StartOperation(env.tel.WithContext(ctx), "casestore.list_all")
			summaries := env.store.ListAllCases(ic.Ctx)
			ic.End(nil)

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			printSummaries(summaries)
			return nil
		},
	}

	return cmd
}

func printSummaries(summaries []casestore.CaseSummary) {
	if len(summaries) == 0 {
		fmt.Println("No cases")
		return
	}

	fmt.Printf("%-24s %-24s %-6s %-10s %s\n", "CUSTOMER", "NAME", "CARD", "STATUS", "UPDATED")
	for _, s := range summaries {
		fmt.Printf("%-24s %-24s %-6s %-10s %s\n",
			s.CustomerID, s.Name, s.CardLast4, s.Status,
			s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
