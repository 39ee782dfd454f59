package executor

import (
	"fmt"
	"time"
)

// Config holds per-job execution settings shared by every sweep.
type Config struct {
	Shots        int           `toml:"shots"`
	PollInterval time.Duration `toml:"poll_interval"`
	Timeout      time.Duration `toml:"timeout"`
}

// DefaultConfig returns the execution settings used by the collection runs.
func DefaultConfig() Config {
	return Config{
		Shots:        256,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

func (c Config) Validate() error {
	if c.Shots <= 0 {
		return fmt.Errorf("execution shots must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("execution poll_interval must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("execution timeout must be positive")
	}
	return nil
}
