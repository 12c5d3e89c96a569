package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRangeCmd() *cobra.Command {
	var owner string
	var macs []string
	var handles []uint

	cmd := &cobra.Command{
		Use:   "range",
		Short: "Submit a ranging request and wait for its results",
		Long: "Submit a ranging request against one or more peers, given by MAC address " +
			"(--mac, repeatable) or by directory handle (--handle, repeatable). " +
			"The command blocks until the request completes, which includes its time " +
			"in the scheduler queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(macs) == 0 && len(handles) == 0 {
				return fmt.Errorf("at least one --mac or --handle is required")
			}
			if owner == "" {
				host, _ := os.Hostname()
				owner = "cli_" + host
			}

			peers := make([]map[string]any, 0, len(macs)+len(handles))
			for _, m := range macs {
				peers = append(peers, map[string]any{"mac": m})
			}
			for _, h := range handles {
				peers = append(peers, map[string]any{"handle": h})
			}

			logger.Debug("submitting ranging", "owner", owner, "peers", len(peers))
			resp, err := client.Post("/api/v1/rangings/", map[string]any{
				"owner": owner,
				"peers": peers,
			})
			if err != nil {
				return fmt.Errorf("ranging: %w", err)
			}

			var data struct {
				Owner   string `json:"owner"`
				Results []struct {
					Status string `json:"status"`
					Peer   struct {
						Kind   string  `json:"kind"`
						MAC    string  `json:"mac"`
						Handle *uint32 `json:"handle"`
					} `json:"peer"`
					DistanceMm       int   `json:"distance_mm"`
					DistanceStdDevMm int   `json:"distance_std_dev_mm"`
					RSSI             int   `json:"rssi"`
					TimestampUs      int64 `json:"timestamp_us"`
				} `json:"results"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("%-24s  %-8s  %-12s  %s\n", "PEER", "STATUS", "DISTANCE", "RSSI")
			for _, res := range data.Results {
				peer := res.Peer.MAC
				if res.Peer.Handle != nil {
					peer = fmt.Sprintf("handle:%d", *res.Peer.Handle)
				}
				distance := "-"
				rssi := "-"
				if res.Status == "SUCCESS" {
					distance = fmt.Sprintf("%.2f m", float64(res.DistanceMm)/1000)
					rssi = fmt.Sprintf("%d dBm", res.RSSI)
				}
				fmt.Printf("%-24s  %-8s  %-12s  %s\n", peer, res.Status, distance, rssi)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity (defaults to cli_<hostname>)")
	cmd.Flags().StringArrayVar(&macs, "mac", nil, "Peer MAC address (repeatable)")
	cmd.Flags().UintSliceVar(&handles, "handle", nil, "Peer directory handle (repeatable)")
	return cmd
}
