package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"autoloop/internal/domain"
)

// newObjectiveCmd creates the objective command group
func newObjectiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "objective",
		Aliases: []string{"obj"},
		Short:   "Manage objectives",
	}
	cmd.AddCommand(newObjectiveListCmd())
	cmd.AddCommand(newObjectiveAddCmd())
	cmd.AddCommand(newObjectiveRemoveCmd())
	return cmd
}

func newObjectiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List objectives",
		RunE: func(cmd *cobra.Command, args []string) error {
			var objectives []domain.Objective
			if err := newAPIClient().get("/api/objectives", &objectives); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(objectives)
			}
			if len(objectives) == 0 {
				fmt.Println("no objectives; add one with: autoloop objective add \"...\"")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tWEIGHT\tTITLE")
			for _, o := range objectives {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", shortID(o.ID), o.Status, o.Weight, o.Title)
			}
			return w.Flush()
		},
	}
}

func newObjectiveAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an objective",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			weight, _ := cmd.Flags().GetFloat64("weight")

			var created domain.Objective
			err := newAPIClient().send(http.MethodPost, "/api/objectives", map[string]any{
				"title":       strings.Join(args, " "),
				"description": description,
				"weight":      weight,
			}, &created)
			if err != nil {
				return err
			}
			fmt.Println("objective created:", created.ID)
			return nil
		},
	}
	cmd.Flags().StringP("description", "d", "", "objective description")
	cmd.Flags().Float64P("weight", "w", 1.0, "objective weight in [0,1]")
	return cmd
}

func newObjectiveRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an objective",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().send(http.MethodDelete, "/api/objectives/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Println("objective removed")
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
