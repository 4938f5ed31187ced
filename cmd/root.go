package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/qbitrace/config"
	"github.com/s0up4200/qbitrace/ledger"
	"github.com/s0up4200/qbitrace/qbittorrent"
	"github.com/s0up4200/qbitrace/race"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger

	client       *qbittorrent.Client
	db           *ledger.Ledger
	orchestrator *race.Orchestrator

	version   = "dev"
	buildTime = "unknown"
)

// SetVersion sets the build information shown by the version command.
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qbitrace",
	Short: "qBittorrent racing tools",
	Long: `qbitrace helps a newly added torrent win the race for tracker slots:
it pauses competing torrents, reannounces until the tracker accepts the
torrent, and restores the paused torrents afterwards.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps errors onto the exit-code
// convention: 0 success, 1 expected failure, 2 unexpected error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, qbittorrent.ErrTorrentNotFound),
		errors.Is(err, race.ErrNotEligible),
		errors.Is(err, race.ErrNoWorkingTracker),
		errors.Is(err, race.ErrEventNotFound),
		errors.Is(err, context.Canceled):
		return 1
	}
	return 2
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// initializeStore loads the configuration, sets up logging and opens
// the pause-event database.
func initializeStore(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = setupLogger(cfg.Logging)

	db, err = ledger.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	return nil
}

// initializeApp additionally connects to qBittorrent and builds the
// race orchestrator.
func initializeApp(cmd *cobra.Command, args []string) error {
	if err := initializeStore(cmd, args); err != nil {
		return err
	}

	var err error
	client, err = qbittorrent.NewClient(cfg.Qbittorrent.Host, cfg.Qbittorrent.Username, cfg.Qbittorrent.Password, logger)
	if err != nil {
		return fmt.Errorf("failed to create qBittorrent client: %w", err)
	}

	engine := race.NewEngine(client, logger)
	engine.MaxReannounce = cfg.Race.MaxReannounce
	engine.Interval = cfg.Race.ReannounceInterval
	if cfg.Race.MaxReannounce > 0 {
		logger.Info().Int("max_reannounce", cfg.Race.MaxReannounce).Msg("Maximum number of reannounce requests")
	} else {
		logger.Info().Msg("Maximum number of reannounce requests is unlimited")
	}
	logger.Info().Dur("interval", cfg.Race.ReannounceInterval).Msg("Reannounce interval")

	orchestrator = race.NewOrchestrator(client, db, engine, cfg, logger)

	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("qbitrace %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
