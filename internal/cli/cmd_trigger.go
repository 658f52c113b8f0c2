package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// newTriggerCmd creates the trigger command
func newTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run one work cycle now",
		Long: `Run one work cycle immediately.

Fails if the engine is mid-cycle. With --preset, a registered preset
hook runs before the cycle (unknown names are logged and ignored).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, _ := cmd.Flags().GetString("preset")

			var resp struct {
				CycleID string `json:"cycleId"`
			}
			err := newAPIClient().send(http.MethodPost, "/api/trigger",
				map[string]string{"preset": preset}, &resp)
			if err != nil {
				return err
			}
			fmt.Println("cycle completed:", resp.CycleID)
			return nil
		},
	}
	cmd.Flags().String("preset", "", "preset hook to run before the cycle")
	return cmd
}

// newPauseCmd creates the pause command
func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().send(http.MethodPost, "/api/pause", nil, nil); err != nil {
				return err
			}
			fmt.Println("engine paused")
			return nil
		},
	}
}

// newResumeCmd creates the resume command
func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().send(http.MethodPost, "/api/resume", nil, nil); err != nil {
				return err
			}
			fmt.Println("engine resumed")
			return nil
		},
	}
}
