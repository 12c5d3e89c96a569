package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPeersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Manage the peer directory",
	}
	cmd.AddCommand(newPeersAddCmd(), newPeersListCmd(), newPeersRmCmd())
	return cmd
}

func newPeersAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <handle> <mac>",
		Short: "Create or update a handle-to-address mapping",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid handle %q: %w", args[0], err)
			}

			_, err = client.Put("/api/v1/peers/", map[string]any{
				"handle": handle,
				"mac":    args[1],
			})
			if err != nil {
				return fmt.Errorf("upsert peer: %w", err)
			}
			fmt.Printf("Peer registered: handle %d -> %s\n", handle, args[1])
			return nil
		},
	}
}

func newPeersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List peer directory entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/peers/")
			if err != nil {
				return fmt.Errorf("list peers: %w", err)
			}

			var entries []struct {
				Handle    uint32 `json:"handle"`
				MAC       string `json:"mac"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := json.Unmarshal(resp.Data, &entries); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No peers registered.")
				return nil
			}

			fmt.Printf("%-10s  %-20s  %s\n", "HANDLE", "MAC", "UPDATED")
			for _, e := range entries {
				fmt.Printf("%-10d  %-20s  %s\n", e.Handle, e.MAC, e.UpdatedAt)
			}
			return nil
		},
	}
}

func newPeersRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <handle>",
		Short: "Delete a peer directory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/peers/" + args[0]); err != nil {
				return fmt.Errorf("delete peer: %w", err)
			}
			fmt.Printf("Peer deleted: handle %s\n", args[0])
			return nil
		},
	}
}
