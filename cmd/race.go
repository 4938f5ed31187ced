package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// raceCmd races the provided torrent
var raceCmd = &cobra.Command{
	Use:     "race <hash>",
	Short:   "Race the provided torrent",
	Long:    `Pause eligible torrents and reannounce the given torrent until its tracker accepts it.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeApp,
	RunE:    runRace,
}

// postRaceCmd resumes the torrents paused for a race
var postRaceCmd = &cobra.Command{
	Use:     "post-race <hash>",
	Short:   "Run the post race steps for the provided torrent",
	Long:    `Resume the torrents that were paused on behalf of the given torrent's race and remove its ledger entry.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeApp,
	RunE:    runPostRace,
}

func init() {
	rootCmd.AddCommand(raceCmd)
	rootCmd.AddCommand(postRaceCmd)
}

func runRace(cmd *cobra.Command, args []string) error {
	// Ctrl+C cancels the context so the cleanup path (resuming
	// whatever this run paused) still executes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return orchestrator.Race(ctx, args[0])
}

func runPostRace(cmd *cobra.Command, args []string) error {
	return orchestrator.PostRace(context.Background(), args[0])
}
