package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newCostCmd creates the cost command
func newCostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cost",
		Short: "Show spend summary and budget status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()

			var summary struct {
				Total      float64            `json:"total"`
				ByProvider map[string]float64 `json:"byProvider"`
				ByPhase    map[string]float64 `json:"byPhase"`
				RunCount   int                `json:"runCount"`
			}
			if err := client.get("/api/cost/summary", &summary); err != nil {
				return err
			}

			var status struct {
				Budget map[string]float64 `json:"budget"`
				Caps   struct {
					DailyUsd  float64 `json:"dailyUsd"`
					WeeklyUsd float64 `json:"weeklyUsd"`
				} `json:"caps"`
			}
			if err := client.get("/api/budget/status", &status); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"summary": summary, "status": status,
				})
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Total spend:\t$%.4f (%d runs)\n", summary.Total, summary.RunCount)
			fmt.Fprintf(w, "Today:\t$%.4f of $%.2f\n", status.Budget["dailyUsd"], status.Caps.DailyUsd)
			fmt.Fprintf(w, "This week:\t$%.4f of $%.2f\n", status.Budget["weeklyUsd"], status.Caps.WeeklyUsd)

			if len(summary.ByProvider) > 0 {
				fmt.Fprintln(w, "\nBy provider:")
				for provider, usd := range summary.ByProvider {
					fmt.Fprintf(w, "  %s\t$%.4f\n", provider, usd)
				}
			}
			if len(summary.ByPhase) > 0 {
				fmt.Fprintln(w, "\nBy phase:")
				for phase, usd := range summary.ByPhase {
					fmt.Fprintf(w, "  %s\t$%.4f\n", phase, usd)
				}
			}
			return w.Flush()
		},
	}
}
