package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"autoloop/internal/orchestrator"
)

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "Show engine state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()

			var snap orchestrator.Snapshot
			if err := client.get("/api/state", &snap); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(snap)
			}

			state := string(snap.State)
			if isatty.IsTerminal(os.Stdout.Fd()) {
				state = colorState(state)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "State:\t%s\n", state)
			fmt.Fprintf(w, "Mode:\t%s\n", snap.Mode)
			if snap.Phase != "" {
				fmt.Fprintf(w, "Phase:\t%s\n", snap.Phase)
			}
			if snap.CurrentCycleID != "" {
				fmt.Fprintf(w, "Cycle:\t%s\n", snap.CurrentCycleID)
			}
			fmt.Fprintf(w, "Cycles completed:\t%d\n", snap.TotalCyclesCompleted)
			if snap.LastCycleCompletedAt != nil {
				fmt.Fprintf(w, "Last cycle:\t%s\n", snap.LastCycleCompletedAt.Local().Format(time.RFC822))
			}
			if snap.NextCycleScheduledAt != nil {
				fmt.Fprintf(w, "Next cycle:\t%s\n", snap.NextCycleScheduledAt.Local().Format(time.RFC822))
			}
			if snap.Error != "" {
				fmt.Fprintf(w, "Last error:\t%s\n", snap.Error)
			}
			return w.Flush()
		},
	}
}

func colorState(state string) string {
	switch state {
	case "idle":
		return "\033[32m" + state + "\033[0m"
	case "paused", "awaiting_approval":
		return "\033[33m" + state + "\033[0m"
	case "error", "budget_exceeded":
		return "\033[31m" + state + "\033[0m"
	}
	return "\033[36m" + state + "\033[0m"
}
