// Package config handles configuration loading and validation for waypoint.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/internal/data/csvio"
)

// Config holds the application configuration.
type Config struct {
	Journal  JournalConfig  `yaml:"journal"`
	Route    RouteConfig    `yaml:"route"`
	CSV      csvio.Columns  `yaml:"csv"`
	Database DatabaseConfig `yaml:"database"`
	Theme    string         `yaml:"theme"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// JournalConfig controls how the game journal is followed.
type JournalConfig struct {
	Dir            string        `yaml:"dir"`
	Pattern        string        `yaml:"pattern"`   // doublestar glob relative to dir
	Commander      string        `yaml:"commander"` // "Auto" follows whichever commander wrote last
	Events         []string      `yaml:"events"`    // events that count as an arrival
	PollInterval   time.Duration `yaml:"poll_interval"`
	LocateInterval time.Duration `yaml:"locate_interval"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	Watch          bool          `yaml:"watch"` // fsnotify wake-ups in addition to polling
}

// RouteConfig holds planning and tracking options.
type RouteConfig struct {
	JumpRange     float64       `yaml:"jump_range"` // light years; 0 requires --range
	Start         string        `yaml:"start"`      // fixed start system, optional
	RoundTrip     bool          `yaml:"round_trip"`
	BlockSize     int           `yaml:"block_size"`
	Workers       int           `yaml:"workers"`
	TimeLimit     time.Duration `yaml:"time_limit"`
	MaxIterations int           `yaml:"max_iterations"`
	AutoSkip      bool          `yaml:"auto_skip"` // skip unvisited stops before an arrival
	OutputDir     string        `yaml:"output_dir"`
}

// DatabaseConfig tunes the visit history database.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// DefaultJournalDir is where the game writes its journal on Windows. Other
// platforms run the game under a compatibility layer and need journal.dir.
func DefaultJournalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Saved Games", "Frontier Developments", "Elite Dangerous")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Journal: JournalConfig{
			Dir:            DefaultJournalDir(),
			Pattern:        "Journal.*.log",
			Commander:      "Auto",
			Events:         []string{"FSDJump", "CarrierJump"},
			PollInterval:   2 * time.Second,
			LocateInterval: 5 * time.Second,
			RetryAttempts:  3,
			RetryBackoff:   250 * time.Millisecond,
			Watch:          true,
		},
		Route: RouteConfig{
			RoundTrip: true,
			BlockSize: 500,
			TimeLimit: 30 * time.Second,
		},
		CSV: csvio.DefaultColumns(),
		Database: DatabaseConfig{
			MaxOpenConns: 4,
			MaxIdleConns: 2,
			BusyTimeout:  5000,
		},
		Theme: styles.DefaultTheme,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Journal.Dir == "" {
		c.Journal.Dir = defaults.Journal.Dir
	}
	if c.Journal.Pattern == "" {
		c.Journal.Pattern = defaults.Journal.Pattern
	}
	if c.Journal.Commander == "" {
		c.Journal.Commander = defaults.Journal.Commander
	}
	if len(c.Journal.Events) == 0 {
		c.Journal.Events = defaults.Journal.Events
	}
	if c.Journal.PollInterval == 0 {
		c.Journal.PollInterval = defaults.Journal.PollInterval
	}
	if c.Journal.LocateInterval == 0 {
		c.Journal.LocateInterval = defaults.Journal.LocateInterval
	}
	if c.Journal.RetryAttempts == 0 {
		c.Journal.RetryAttempts = defaults.Journal.RetryAttempts
	}
	if c.Journal.RetryBackoff == 0 {
		c.Journal.RetryBackoff = defaults.Journal.RetryBackoff
	}

	if c.Route.BlockSize == 0 {
		c.Route.BlockSize = defaults.Route.BlockSize
	}
	if c.Route.TimeLimit == 0 {
		c.Route.TimeLimit = defaults.Route.TimeLimit
	}

	if c.CSV.Name == "" {
		c.CSV.Name = defaults.CSV.Name
	}
	if c.CSV.X == "" {
		c.CSV.X = defaults.CSV.X
	}
	if c.CSV.Y == "" {
		c.CSV.Y = defaults.CSV.Y
	}
	if c.CSV.Z == "" {
		c.CSV.Z = defaults.CSV.Z
	}

	if c.Theme == "" {
		c.Theme = defaults.Theme
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if !doublestar.ValidatePattern(c.Journal.Pattern) {
		return fmt.Errorf("journal.pattern %q is not a valid glob", c.Journal.Pattern)
	}
	if c.Journal.PollInterval < 0 || c.Journal.LocateInterval < 0 || c.Journal.RetryBackoff < 0 {
		return fmt.Errorf("journal intervals cannot be negative")
	}
	if c.Journal.RetryAttempts < 1 {
		return fmt.Errorf("journal.retry_attempts must be at least 1")
	}

	if c.Route.JumpRange < 0 {
		return fmt.Errorf("route.jump_range cannot be negative")
	}
	if c.Route.BlockSize < 1 {
		return fmt.Errorf("route.block_size must be at least 1")
	}
	if c.Route.Workers < 0 {
		return fmt.Errorf("route.workers cannot be negative")
	}
	if c.Route.TimeLimit < 0 {
		return fmt.Errorf("route.time_limit cannot be negative")
	}
	if c.Route.MaxIterations < 0 {
		return fmt.Errorf("route.max_iterations cannot be negative")
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("unknown theme %q (available: %s)", c.Theme, strings.Join(styles.ThemeNames(), ", "))
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}

	return nil
}

// RouteFile returns the path of the persisted route.
func (c *Config) RouteFile() string {
	return filepath.Join(c.DataDir, "route.json")
}

// LogFile returns the default log file path.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "waypoint.log")
}
