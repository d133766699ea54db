package logger

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config represents logging configuration
type Config struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json, for stdout only
	File   string `mapstructure:"file"`   // optional, always JSON

	// lumberjack rotation, used only with File
	MaxSize    int  `mapstructure:"max_size"` // MB
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"` // days
	Compress   bool `mapstructure:"compress"`
}

// SetDefaults returns a copy with zero values replaced by defaults
func (cfg *Config) SetDefaults() *Config {
	c := *cfg
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.MaxSize == 0 {
		c.MaxSize = 100
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAge == 0 {
		c.MaxAge = 28
	}
	return &c
}

// Validate validates logging configuration
func (cfg *Config) Validate() error {
	if _, err := cfg.level(); err != nil {
		return err
	}
	if cfg.Format != "console" && cfg.Format != "json" {
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	if cfg.File != "" && cfg.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive")
	}
	return nil
}

func (cfg *Config) level() (zapcore.Level, error) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
		return zapcore.ParseLevel(cfg.Level)
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", cfg.Level)
	}
}
