package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the ranging history",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryShowCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent ranging requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/rangings/")
			if err != nil {
				return fmt.Errorf("list rangings: %w", err)
			}

			var recs []struct {
				ID          string `json:"id"`
				Owner       string `json:"owner"`
				Outcome     string `json:"outcome"`
				FailureCode string `json:"failure_code"`
				CompletedAt string `json:"completed_at"`
			}
			if err := json.Unmarshal(resp.Data, &recs); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(recs) == 0 {
				fmt.Println("No rangings recorded.")
				return nil
			}

			fmt.Printf("%-14s  %-16s  %-10s  %-22s  %s\n", "ID", "OWNER", "OUTCOME", "FAILURE", "COMPLETED")
			for _, rec := range recs {
				failure := rec.FailureCode
				if failure == "" {
					failure = "-"
				}
				fmt.Printf("%-14s  %-16s  %-10s  %-22s  %s\n", rec.ID, rec.Owner, rec.Outcome, failure, rec.CompletedAt)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(recs), resp.Pagination.Total)
			}
			return nil
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one ranging record in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/rangings/" + args[0])
			if err != nil {
				return fmt.Errorf("get ranging: %w", err)
			}

			var pretty map[string]any
			if err := json.Unmarshal(resp.Data, &pretty); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			out, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return fmt.Errorf("render record: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
