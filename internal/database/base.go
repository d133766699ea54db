package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Database is the DB implementation shared by every dialect
type Database struct {
	db      *sql.DB
	dialect *dialect
	logger  *zap.Logger
	opts    Options

	queries  atomic.Int64
	failures atomic.Int64
	slow     atomic.Int64
	elapsed  atomic.Int64 // nanoseconds
}

// Open connects to the named dialect (sqlite, mysql or postgres), applies the
// pool options and verifies the connection. Migrations are not run.
func Open(ctx context.Context, name, dsn string, opts Options, logger *zap.Logger) (*Database, error) {
	d, err := lookupDialect(name)
	if err != nil {
		return nil, err
	}
	if d.prepare != nil {
		if err := d.prepare(dsn); err != nil {
			return nil, err
		}
	}

	opts = opts.withDefaults()
	db, err := sql.Open(d.driverName, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	database := &Database{
		db:      db,
		dialect: d,
		logger:  logger.With(zap.String("dialect", name)),
		opts:    opts,
	}
	if err := database.init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	return database, nil
}

func (d *Database) init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.QueryTimeout)
	defer cancel()

	for _, stmt := range d.dialect.setup {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}

	var version string
	if err := d.db.QueryRowContext(ctx, d.dialect.version).Scan(&version); err != nil {
		return fmt.Errorf("failed to query server version: %w", err)
	}
	d.logger.Debug("Database connected", zap.String("server_version", version))
	return nil
}

// bounded applies the default query timeout when ctx has no deadline
func (d *Database) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.opts.QueryTimeout)
}

// ExecContext executes a statement
func (d *Database) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.bounded(ctx)
	defer cancel()

	start := time.Now()
	result, err := d.db.ExecContext(ctx, query, args...)
	d.observe(start, err)
	return result, err
}

// QueryContext runs a query. Rows outlive this call, so the caller owns the deadline.
func (d *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	d.observe(start, err)
	return rows, err
}

// QueryRowContext runs a single-row query. The caller owns the deadline.
func (d *Database) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := d.db.QueryRowContext(ctx, query, args...)
	d.observe(start, row.Err())
	return row
}

// WithTransaction runs fn in a transaction, rolling back on error or panic
func (d *Database) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	ctx, cancel := d.bounded(ctx)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: d.dialect.isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		d.observe(start, err)
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// Rebind rewrites placeholders for the dialect
func (d *Database) Rebind(query string) string {
	if d.dialect.numbered {
		return numberPlaceholders(query)
	}
	return query
}

// Returning reports whether INSERT ... RETURNING is available
func (d *Database) Returning() bool {
	return d.dialect.returning
}

// Dialect returns the dialect name
func (d *Database) Dialect() string {
	return d.dialect.name
}

// Ping checks the connection
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the pool
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Stats returns pool statistics and statement counters
func (d *Database) Stats() Stats {
	s := Stats{
		DBStats:     d.db.Stats(),
		Queries:     d.queries.Load(),
		Failures:    d.failures.Load(),
		SlowQueries: d.slow.Load(),
	}
	if s.Queries > 0 {
		s.AvgQueryTime = time.Duration(d.elapsed.Load() / s.Queries)
	}
	return s
}

// Unwrap returns the underlying pool
func (d *Database) Unwrap() *sql.DB {
	return d.db
}

func (d *Database) observe(start time.Time, err error) {
	took := time.Since(start)
	d.queries.Add(1)
	d.elapsed.Add(int64(took))

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		d.failures.Add(1)
	}
	if took > d.opts.SlowQuery {
		d.slow.Add(1)
		d.logger.Warn("Slow query", zap.Duration("took", took))
	}
}
