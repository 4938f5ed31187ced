package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Qbittorrent QbittorrentConfig `mapstructure:"qbittorrent"`
	Race        RaceConfig        `mapstructure:"race"`
	Pause       PauseConfig       `mapstructure:"pause"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// QbittorrentConfig holds qBittorrent WebUI connection details
type QbittorrentConfig struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// RaceConfig controls racing behaviour
type RaceConfig struct {
	// Categories restricts racing (and pause eligibility) to these
	// categories. Empty means every torrent is eligible.
	Categories []string `mapstructure:"categories"`
	// IgnoreCategories lists categories that are never paused on
	// behalf of a race.
	IgnoreCategories []string `mapstructure:"ignore_categories"`
	// Ratio is the minimum share ratio a torrent in a race category
	// must have before it is eligible for pausing.
	Ratio float64 `mapstructure:"ratio"`
	// MaxReannounce bounds the number of reannounce requests sent for
	// one race. Zero means unlimited.
	MaxReannounce int `mapstructure:"max_reannounce"`
	// ReannounceInterval is the delay between reannounce attempts.
	ReannounceInterval time.Duration `mapstructure:"reannounce_interval"`
	// Pausing enables pausing of other torrents before racing.
	Pausing bool `mapstructure:"pausing"`
}

// PauseConfig controls the bulk pause command. Thresholds use the
// extended duration syntax, e.g. "2w", "3d12h", "90m".
type PauseConfig struct {
	// MaxLastActivity pauses torrents that have seen no activity for
	// at least this long. Empty disables the check.
	MaxLastActivity string `mapstructure:"max_last_activity"`
	// MaxSeedingTime pauses torrents that have been active for at
	// least this long. Empty disables the check.
	MaxSeedingTime string `mapstructure:"max_seeding_time"`
	// Filter is an optional expression further restricting which
	// torrents are paused, e.g. `Category == "archive" and Ratio > 1.0`.
	Filter string `mapstructure:"filter"`
}

// DatabaseConfig locates the pause-event database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig contains server mode settings
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// MaxLastActivityDuration returns the parsed idle threshold, or zero when unset.
func (c PauseConfig) MaxLastActivityDuration() (time.Duration, error) {
	if c.MaxLastActivity == "" {
		return 0, nil
	}
	return ParseDuration(c.MaxLastActivity)
}

// MaxSeedingTimeDuration returns the parsed active threshold, or zero when unset.
func (c PauseConfig) MaxSeedingTimeDuration() (time.Duration, error) {
	if c.MaxSeedingTime == "" {
		return 0, nil
	}
	return ParseDuration(c.MaxSeedingTime)
}
