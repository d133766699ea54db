package database

import (
	"database/sql"
	"time"

	"ipwatch/internal/config"
)

// Options tunes the connection pool and query accounting
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// QueryTimeout bounds statements whose context has no deadline
	QueryTimeout time.Duration
	// SlowQuery is the duration above which a statement is logged and counted
	SlowQuery time.Duration
}

// OptionsFrom maps the history configuration onto pool options
func OptionsFrom(cfg *config.HistoryConfig) Options {
	return Options{
		MaxOpenConns:    cfg.MaxConnections,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxLifetime,
		QueryTimeout:    cfg.QueryTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 4
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 2
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = time.Hour
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 10 * time.Second
	}
	if o.SlowQuery <= 0 {
		o.SlowQuery = time.Second
	}
	return o
}

// Stats combines pool statistics with statement counters
type Stats struct {
	sql.DBStats

	Queries      int64
	Failures     int64
	SlowQueries  int64
	AvgQueryTime time.Duration
}
