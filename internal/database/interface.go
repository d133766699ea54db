package database

import (
	"context"
	"database/sql"
)

// DB is a pooled connection to one of the supported history databases
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row

	// WithTransaction runs fn in a transaction at the dialect's isolation level.
	// The transaction commits only if fn returns nil.
	WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error

	// Rebind rewrites '?' placeholders into the dialect's bind style
	Rebind(query string) string
	// Returning reports whether INSERT ... RETURNING is available
	Returning() bool
	// Dialect returns sqlite, mysql or postgres
	Dialect() string

	Ping(ctx context.Context) error
	Close() error
	Stats() Stats
	Unwrap() *sql.DB
}
