package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOwnersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owners",
		Short: "Manage owner authorization",
	}
	cmd.AddCommand(newOwnersRevokeCmd(), newOwnersRestoreCmd())
	return cmd
}

func newOwnersRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <owner>",
		Short: "Revoke an owner's authorization",
		Long: "Revoke an owner's authorization. Results of the owner's in-flight " +
			"requests are suppressed and reported as generic failures.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post("/api/v1/owners/"+args[0]+"/revoke", nil); err != nil {
				return fmt.Errorf("revoke: %w", err)
			}
			fmt.Printf("Owner revoked: %s\n", args[0])
			return nil
		},
	}
}

func newOwnersRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <owner>",
		Short: "Restore a revoked owner's authorization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/owners/" + args[0] + "/revoke"); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			fmt.Printf("Owner restored: %s\n", args[0])
			return nil
		},
	}
}
