package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/livinlefevreloca/qrun/internal/db"
	"github.com/livinlefevreloca/qrun/internal/executor"
	"github.com/livinlefevreloca/qrun/internal/metrics"
	"github.com/livinlefevreloca/qrun/internal/runtime"
	"github.com/livinlefevreloca/qrun/internal/stats"
	"github.com/livinlefevreloca/qrun/internal/sweep"
)

// Config represents the application configuration
type Config struct {
	Runtime   runtime.Config  `toml:"runtime"`
	Execution executor.Config `toml:"execution"`
	Sweep     sweep.Config    `toml:"sweep"`
	Metrics   metrics.Config  `toml:"metrics"`
	Data      DataConfig      `toml:"data"`
	Database  db.Config       `toml:"database"`
	Stats     stats.Config    `toml:"stats"`
	Logging   LoggingConfig   `toml:"logging"`
}

// DataConfig names the files exchanged with the other pipeline steps. All
// names are relative to Dir.
type DataConfig struct {
	Dir         string `toml:"dir"`
	BackendFile string `toml:"backend_file"`
	RunLog      string `toml:"run_log"`

	TimeSeries             string `toml:"timeseries"`
	Distance               string `toml:"distance"`
	SDPairs                string `toml:"sd_pairs"`
	TimeSeriesThroughput   string `toml:"timeseries_throughput"`
	TimeSeriesSatisfaction string `toml:"timeseries_satisfaction"`
	DistanceMetrics        string `toml:"distance_metrics"`
	SDPairsMetrics         string `toml:"sd_pairs_metrics"`
}

// BackendPath is the path of the backend descriptor.
func (d DataConfig) BackendPath() string { return filepath.Join(d.Dir, d.BackendFile) }

// RunLogPath is the path of the JSONL run log.
func (d DataConfig) RunLogPath() string { return filepath.Join(d.Dir, d.RunLog) }

// Files returns the table locations used by the metrics builder.
func (d DataConfig) Files() metrics.Files {
	return metrics.Files{
		Dir:                    d.Dir,
		TimeSeries:             d.TimeSeries,
		Distance:               d.Distance,
		SDPairs:                d.SDPairs,
		TimeSeriesThroughput:   d.TimeSeriesThroughput,
		TimeSeriesSatisfaction: d.TimeSeriesSatisfaction,
		DistanceMetrics:        d.DistanceMetrics,
		SDPairsMetrics:         d.SDPairsMetrics,
	}
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	files := metrics.DefaultFiles("data")
	return &Config{
		Runtime:   runtime.DefaultConfig(),
		Execution: executor.DefaultConfig(),
		Sweep:     sweep.DefaultConfig(),
		Metrics:   metrics.DefaultConfig(),
		Data: DataConfig{
			Dir:                    files.Dir,
			BackendFile:            "backend.json",
			RunLog:                 "raw_jobs.jsonl",
			TimeSeries:             files.TimeSeries,
			Distance:               files.Distance,
			SDPairs:                files.SDPairs,
			TimeSeriesThroughput:   files.TimeSeriesThroughput,
			TimeSeriesSatisfaction: files.TimeSeriesSatisfaction,
			DistanceMetrics:        files.DistanceMetrics,
			SDPairsMetrics:         files.SDPairsMetrics,
		},
		Database: db.Config{
			Enabled:         true,
			Driver:          "sqlite3",
			DSN:             "data/qrun.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			SkipMigrations:  false,
		},
		Stats: stats.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// Parse TOML file
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	// If no config file specified, return defaults
	if configPath == "" {
		return DefaultConfig(), nil
	}

	return LoadFromFile(configPath)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Runtime.BaseURL == "" {
		return fmt.Errorf("runtime base_url must be specified")
	}
	if c.Runtime.RequestsPerSecond < 0 {
		return fmt.Errorf("runtime requests_per_second must not be negative")
	}

	if err := c.Execution.Validate(); err != nil {
		return err
	}
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Stats.Validate(); err != nil {
		return err
	}

	// Data validation
	if c.Data.BackendFile == "" || c.Data.RunLog == "" {
		return fmt.Errorf("data backend_file and run_log must be specified")
	}
	for name, file := range map[string]string{
		"timeseries":              c.Data.TimeSeries,
		"distance":                c.Data.Distance,
		"sd_pairs":                c.Data.SDPairs,
		"timeseries_throughput":   c.Data.TimeSeriesThroughput,
		"timeseries_satisfaction": c.Data.TimeSeriesSatisfaction,
		"distance_metrics":        c.Data.DistanceMetrics,
		"sd_pairs_metrics":        c.Data.SDPairsMetrics,
	} {
		if file == "" {
			return fmt.Errorf("data %s must be specified", name)
		}
	}

	// Database validation
	if c.Database.Enabled {
		if c.Database.Driver != "sqlite3" {
			return fmt.Errorf("unsupported database driver: %s (must be sqlite3)", c.Database.Driver)
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN must be specified")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
