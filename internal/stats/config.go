package stats

import "fmt"

// Config defines configuration for the session stats collector
type Config struct {
	// Textfile is the Prometheus textfile written when the session ends.
	// Empty disables the export.
	Textfile string `toml:"textfile"`

	// FlushThreshold closes a stats period after this many jobs. Zero keeps
	// the whole session in one period.
	FlushThreshold int `toml:"flush_threshold"`
}

// DefaultConfig returns default stats collector configuration
func DefaultConfig() Config {
	return Config{
		Textfile:       "",
		FlushThreshold: 0,
	}
}

func (c Config) Validate() error {
	if c.FlushThreshold < 0 {
		return fmt.Errorf("stats flush_threshold must not be negative")
	}
	return nil
}
