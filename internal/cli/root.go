package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/rangerd/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking RANGERD_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("RANGERD_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the rangectl CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rangectl",
		Short: "rangectl controls a rangerd ranging scheduler",
		Long:  "rangectl submits ranging requests and manages the peer directory of a rangerd server.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(flagLogLevel, flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "rangerd server URL (or RANGERD_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRangeCmd(),
		newPeersCmd(),
		newHistoryCmd(),
		newStatusCmd(),
		newEnableCmd(),
		newDisableCmd(),
		newDumpCmd(),
		newOwnersCmd(),
	)

	return root
}
