package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var pauseEventID string

// pauseCmd pauses torrents matching the configured criteria
var pauseCmd = &cobra.Command{
	Use:     "pause",
	Short:   "Pause any torrents that match the criteria specified in the config",
	PreRunE: initializeApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchestrator.Pause(context.Background(), pauseEventID)
	},
}

// unpauseCmd reverses a previous pause
var unpauseCmd = &cobra.Command{
	Use:     "unpause",
	Short:   "Unpause any torrents that were paused using the pause command",
	PreRunE: initializeApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		return orchestrator.Unpause(context.Background(), pauseEventID)
	},
}

func init() {
	pauseCmd.Flags().StringVar(&pauseEventID, "id", "pause", "a unique identifier for this pause event, which is needed to call unpause")
	unpauseCmd.Flags().StringVar(&pauseEventID, "id", "pause", "the identifier that was used when pausing the torrents")

	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(unpauseCmd)
}
