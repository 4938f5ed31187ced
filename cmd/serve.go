package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/s0up4200/qbitrace/server"
	"github.com/s0up4200/qbitrace/task"
)

var servePort int

// serveCmd runs qbitrace in server mode
var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run in server mode",
	Long:    `Expose the racing operations over HTTP so download-client hooks can trigger them.`,
	PreRunE: initializeApp,
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	tasks := task.NewManager(logger)
	srv := server.New(orchestrator, tasks, db, port, logger)
	return srv.Run(ctx)
}
