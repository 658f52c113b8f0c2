package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"autoloop/internal/domain"
)

// newApproveCmd creates the approve command
func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve [task-id]",
		Short: "Approve a task awaiting approval",
		Long: `Approve a tier-2 task parked in the approval queue.

Without arguments, lists the pending queue.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()

			if len(args) == 0 {
				var pending []domain.Task
				if err := client.get("/api/approvals", &pending); err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Println("no tasks awaiting approval")
					return nil
				}
				for _, t := range pending {
					fmt.Printf("%s  T%d  %s\n", shortID(t.ID), t.AutonomyTier, t.Title)
				}
				return nil
			}

			var task domain.Task
			if err := client.send(http.MethodPost, "/api/tasks/"+args[0]+"/approve", nil, &task); err != nil {
				return err
			}
			fmt.Printf("task %s approved, now %s\n", shortID(task.ID), task.State)
			return nil
		},
	}
	return cmd
}

// newRejectCmd creates the reject command
func newRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <task-id>",
		Short: "Reject a task awaiting approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")

			var task domain.Task
			err := newAPIClient().send(http.MethodPost, "/api/tasks/"+args[0]+"/reject",
				map[string]string{"reason": reason}, &task)
			if err != nil {
				return err
			}
			fmt.Printf("task %s rejected\n", shortID(task.ID))
			return nil
		},
	}
	cmd.Flags().StringP("reason", "r", "", "rejection reason")
	return cmd
}
