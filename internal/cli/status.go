package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/status")
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}

			var data struct {
				Available bool `json:"available"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if data.Available {
				fmt.Println("Scheduler: available")
			} else {
				fmt.Println("Scheduler: unavailable")
			}
			return nil
		},
	}
}

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post("/api/v1/enable", nil); err != nil {
				return fmt.Errorf("enable: %w", err)
			}
			fmt.Println("Scheduler enabled.")
			return nil
		},
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable the scheduler and flush its queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post("/api/v1/disable", nil); err != nil {
				return fmt.Errorf("disable: %w", err)
			}
			fmt.Println("Scheduler disabled; queued requests flushed.")
			return nil
		},
	}
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the scheduler's diagnostic snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := client.GetText("/api/v1/dump")
			if err != nil {
				return fmt.Errorf("dump: %w", err)
			}
			fmt.Print(text)
			return nil
		},
	}
}
