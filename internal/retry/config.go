package retry

import (
	"errors"
	"time"
)

// Config defines a bounded exponential backoff
type Config struct {
	Attempts    int           `mapstructure:"attempts" validate:"gte=0"`     // Total attempts, 0 or 1 means no retry
	Interval    time.Duration `mapstructure:"interval" validate:"gte=0"`     // Delay after the first failure
	MaxInterval time.Duration `mapstructure:"max_interval" validate:"gte=0"` // Upper bound for the doubled delay
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() *Config {
	return &Config{
		Attempts:    5,
		Interval:    time.Second,
		MaxInterval: 30 * time.Second,
	}
}

// Validate validates the retry configuration
func (cfg *Config) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.Attempts < 0 {
		return errors.New("attempts cannot be negative")
	}
	if cfg.Interval < 0 || cfg.MaxInterval < 0 {
		return errors.New("intervals cannot be negative")
	}
	if cfg.MaxInterval > 0 && cfg.Interval > cfg.MaxInterval {
		return errors.New("max_interval must not be less than interval")
	}
	return nil
}

// backoff returns the delay before attempt n+1, n starting at 1
func (cfg *Config) backoff(n int) time.Duration {
	d := cfg.Interval
	for i := 1; i < n; i++ {
		d *= 2
		if cfg.MaxInterval > 0 && d >= cfg.MaxInterval {
			return cfg.MaxInterval
		}
	}
	if cfg.MaxInterval > 0 && d > cfg.MaxInterval {
		return cfg.MaxInterval
	}
	return d
}
