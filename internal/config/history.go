package config

import (
	"fmt"
	"time"

	"ipwatch/internal/retry"
	"ipwatch/internal/types"
)

// HistoryConfig represents the history store backend
type HistoryConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=sqlite mysql postgres redis"`
	DSN             string        `mapstructure:"dsn"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxConnections  int           `mapstructure:"max_connections" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	Redis           RedisConfig   `mapstructure:"redis"`
	// ConnectRetry applies to the initial connection of network backends
	ConnectRetry retry.Config `mapstructure:"connect_retry"`
}

// RedisConfig represents the redis history backend
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Key         string        `mapstructure:"key"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Validate validates history configuration
func (c *HistoryConfig) Validate() error {
	switch c.Driver {
	case "sqlite", "mysql", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for driver %s", c.Driver)
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for driver redis")
		}
		if c.Redis.Key == "" {
			return fmt.Errorf("redis.key is required for driver redis")
		}
	default:
		return fmt.Errorf("%w: %s", types.ErrInvalidDriver, c.Driver)
	}

	if c.MaxConnections == 0 {
		c.MaxConnections = 4
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if err := c.ConnectRetry.Validate(); err != nil {
		return fmt.Errorf("connect_retry: %w", err)
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	return nil
}
