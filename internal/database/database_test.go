package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ipwatch/internal/config"
	"ipwatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSQLite(t *testing.T) DB {
	t.Helper()
	cfg := &config.HistoryConfig{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "nested", "history.db"),
		AutoMigrate: true,
	}
	db, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewSQLiteRunsMigrations(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	assert.Equal(t, "sqlite", db.Dialect())
	assert.False(t, db.Returning())
	require.NoError(t, db.Ping(ctx))

	_, err := db.ExecContext(ctx, db.Rebind("INSERT INTO ip_history (ip, changed_at) VALUES (?, ?)"),
		"203.0.113.5", time.Now().UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)

	qctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var ip string
	require.NoError(t, db.QueryRowContext(qctx, "SELECT ip FROM ip_history ORDER BY id DESC LIMIT 1").Scan(&ip))
	assert.Equal(t, "203.0.113.5", ip)

	stats := db.Stats()
	assert.GreaterOrEqual(t, stats.Queries, int64(2))
	assert.Zero(t, stats.Failures)
	assert.Equal(t, 4, stats.MaxOpenConnections)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	cfg := &config.HistoryConfig{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "history.db"),
		AutoMigrate: true,
	}
	logger := zaptest.NewLogger(t)

	first, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestWithTransactionRollsBack(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO ip_history (ip, changed_at) VALUES (?, ?)", "198.51.100.9", "now"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	qctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var count int
	require.NoError(t, db.QueryRowContext(qctx, "SELECT COUNT(*) FROM ip_history").Scan(&count))
	assert.Zero(t, count)
}

func TestNewInvalidDriver(t *testing.T) {
	_, err := New(context.Background(), &config.HistoryConfig{Driver: "oracle", DSN: "x"}, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = Open(context.Background(), "oracle", "x", Options{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, types.ErrInvalidDriver)
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = db.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO ip_history (ip, changed_at) VALUES (?, ?)", "198.51.100.9", "now"); err != nil {
				return err
			}
			panic("boom")
		})
	})

	qctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var count int
	require.NoError(t, db.QueryRowContext(qctx, "SELECT COUNT(*) FROM ip_history").Scan(&count))
	assert.Zero(t, count)
}

func TestNumberPlaceholders(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM t WHERE a = ? AND b = ?": "SELECT * FROM t WHERE a = $1 AND b = $2",
		"SELECT 1":                              "SELECT 1",
		"SELECT '?' FROM t WHERE a = ?":         "SELECT '?' FROM t WHERE a = $1",
	}
	for in, want := range tests {
		assert.Equal(t, want, numberPlaceholders(in))
	}
}

func TestDialects(t *testing.T) {
	pg, err := lookupDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", pg.driverName)
	assert.True(t, pg.numbered)
	assert.True(t, pg.returning)

	my, err := lookupDialect("mysql")
	require.NoError(t, err)
	assert.False(t, my.numbered)
	assert.Equal(t, sql.LevelRepeatableRead, my.isolation)

	_, err = lookupDialect("redis")
	assert.ErrorIs(t, err, types.ErrInvalidDriver)
}

func TestDSNParams(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"postgres url", addPostgresParams, "postgres://u:p@localhost/ip", "postgres://u:p@localhost/ip?sslmode=disable"},
		{"postgres url with query", addPostgresParams, "postgres://localhost/ip?application_name=x", "postgres://localhost/ip?application_name=x&sslmode=disable"},
		{"postgres keyword", addPostgresParams, "host=localhost dbname=ip", "host=localhost dbname=ip sslmode=disable"},
		{"postgres explicit", addPostgresParams, "host=db sslmode=require", "host=db sslmode=require"},
		{"mysql", addMySQLParams, "u:p@tcp(db:3306)/ip", "u:p@tcp(db:3306)/ip?charset=utf8mb4&parseTime=true&loc=UTC"},
		{"sqlite existing", addSQLiteParams, "file:ip.db?_txlock=immediate", "file:ip.db?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"},
		{"mysql existing", addMySQLParams, "u:p@tcp(db:3306)/ip?parseTime=true", "u:p@tcp(db:3306)/ip?parseTime=true&charset=utf8mb4&loc=UTC"},
		{"sqlite", addSQLiteParams, "data/ip.db", "data/ip.db?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "data/ip.db", sqlitePath("file:data/ip.db?mode=rwc"))
	assert.Equal(t, "data/ip.db", sqlitePath("data/ip.db"))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxOpenConns: 8}.withDefaults()
	assert.Equal(t, 8, o.MaxOpenConns)
	assert.Equal(t, 2, o.MaxIdleConns)
	assert.Equal(t, time.Hour, o.ConnMaxLifetime)
	assert.Equal(t, 10*time.Second, o.QueryTimeout)
	assert.Equal(t, time.Second, o.SlowQuery)
}
