package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ipwatch/internal/types"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// dialect holds everything that differs between the supported databases
type dialect struct {
	name       string // config name and migration directory
	driverName string // database/sql driver

	prepare func(dsn string) error  // runs before the pool is opened
	dsn     func(dsn string) string // adds required connection parameters
	setup   []string                // statements run once after connecting
	version string                  // reports the server version

	isolation sql.IsolationLevel
	numbered  bool // $1, $2 placeholders
	returning bool // INSERT ... RETURNING id
}

var dialects = map[string]*dialect{
	"sqlite": {
		name:       "sqlite",
		driverName: "sqlite3",
		prepare:    ensureSQLiteDir,
		dsn:        addSQLiteParams,
		setup: []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		},
		version:   "SELECT sqlite_version()",
		isolation: sql.LevelDefault,
	},
	"mysql": {
		name:       "mysql",
		driverName: "mysql",
		dsn:        addMySQLParams,
		version:    "SELECT VERSION()",
		isolation:  sql.LevelRepeatableRead,
	},
	"postgres": {
		name:       "postgres",
		driverName: "pgx",
		dsn:        addPostgresParams,
		version:    "SHOW server_version",
		isolation:  sql.LevelReadCommitted,
		numbered:   true,
		returning:  true,
	},
}

func lookupDialect(name string) (*dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidDriver, name)
	}
	return d, nil
}

// sqlitePath extracts the file path from a DSN such as "file:data/x.db?mode=rwc"
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func ensureSQLiteDir(dsn string) error {
	path := sqlitePath(dsn)
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// appendParams appends params to dsn, skipping any whose key is already present
func appendParams(dsn string, params ...string) string {
	var add []string
	for _, p := range params {
		key, _, _ := strings.Cut(p, "=")
		if !strings.Contains(dsn, key+"=") {
			add = append(add, p)
		}
	}
	if len(add) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(add, "&")
}

// addSQLiteParams enables WAL and takes the write lock when a transaction begins
func addSQLiteParams(dsn string) string {
	return appendParams(dsn,
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		"_txlock=immediate",
	)
}

// addMySQLParams adds the parameters history queries rely on
func addMySQLParams(dsn string) string {
	return appendParams(dsn, "charset=utf8mb4", "parseTime=true", "loc=UTC")
}

// addPostgresParams disables TLS unless the DSN says otherwise.
// Both URL and keyword/value DSNs are accepted.
func addPostgresParams(dsn string) string {
	if strings.Contains(dsn, "sslmode=") {
		return dsn
	}
	if !strings.Contains(dsn, "://") {
		return strings.TrimSpace(dsn + " sslmode=disable")
	}
	return appendParams(dsn, "sslmode=disable")
}
