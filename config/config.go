package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/s0up4200/qbitrace/filter"
)

// StateDirEnv overrides the directory that holds the pause-event database.
const StateDirEnv = "QBITRACE_STATE_DIR"

// Load loads the configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "qbitrace"))
		}

		// Check /etc
		v.AddConfigPath("/etc/qbitrace/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// qBittorrent defaults
	v.SetDefault("qbittorrent.host", "http://localhost:8080")

	// Race defaults
	v.SetDefault("race.reannounce_interval", "5s")
	v.SetDefault("race.pausing", true)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath())

	// Server defaults
	v.SetDefault("server.port", 8081)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// defaultDatabasePath resolves the pause-event database location,
// honoring the state dir override.
func defaultDatabasePath() string {
	dir := os.Getenv(StateDirEnv)
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "state", "qbitrace")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "qbitrace.db")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Qbittorrent.Host == "" {
		return fmt.Errorf("qbittorrent.host is required")
	}

	if cfg.Race.Ratio < 0 {
		return fmt.Errorf("race.ratio must not be negative")
	}

	if cfg.Race.ReannounceInterval <= 0 {
		return fmt.Errorf("race.reannounce_interval must be positive")
	}

	if _, err := cfg.Pause.MaxLastActivityDuration(); err != nil {
		return fmt.Errorf("invalid pause.max_last_activity: %w", err)
	}
	if _, err := cfg.Pause.MaxSeedingTimeDuration(); err != nil {
		return fmt.Errorf("invalid pause.max_seeding_time: %w", err)
	}

	if cfg.Pause.Filter != "" {
		if _, err := filter.Compile(cfg.Pause.Filter); err != nil {
			return fmt.Errorf("invalid pause.filter: %w", err)
		}
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
