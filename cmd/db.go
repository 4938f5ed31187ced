package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	dbPrint  bool
	dbClear  bool
	dbDelete string
)

// dbCmd inspects and maintains the pause-event database
var dbCmd = &cobra.Command{
	Use:     "db",
	Short:   "Perform actions on the pause-event database",
	PreRunE: initializeStore,
	RunE:    runDB,
}

func init() {
	dbCmd.Flags().BoolVar(&dbPrint, "print", false, "print the contents of the database")
	dbCmd.Flags().BoolVar(&dbClear, "clear", false, "clear the database")
	dbCmd.Flags().StringVar(&dbDelete, "delete", "", "delete the specified event from the database")

	rootCmd.AddCommand(dbCmd)
}

func runDB(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	switch {
	case dbPrint:
		fmt.Printf("Database path: %s\n", cfg.Database.Path)
		events, err := db.List(ctx)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("Database is empty.")
			return nil
		}

		eventIDs := make([]string, 0, len(events))
		for eventID := range events {
			eventIDs = append(eventIDs, eventID)
		}
		sort.Strings(eventIDs)

		for _, eventID := range eventIDs {
			fmt.Printf("%s\n", eventID)
			for _, hash := range events[eventID] {
				fmt.Printf("  %s\n", hash)
			}
			if len(events[eventID]) == 0 {
				fmt.Println("  (no paused torrents)")
			}
		}
		return nil

	case dbClear:
		fmt.Print("This will delete ALL entries from the database. Are you sure? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
		return db.Clear(ctx)

	case dbDelete != "":
		deleted, err := db.Delete(ctx, dbDelete)
		if err != nil {
			return err
		}
		if deleted == 1 {
			fmt.Println("1 event deleted")
		} else {
			fmt.Printf("%d events deleted\n", deleted)
		}
		return nil
	}

	return fmt.Errorf("you must pass one of --print, --clear, or --delete")
}
