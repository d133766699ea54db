package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql
var migrations embed.FS

// drivers maps a dialect to its migrate driver name and constructor
var drivers = map[string]struct {
	name string
	open func(*sql.DB) (database.Driver, error)
}{
	"sqlite": {"sqlite3", func(db *sql.DB) (database.Driver, error) {
		return sqlite3.WithInstance(db, &sqlite3.Config{})
	}},
	"mysql": {"mysql", func(db *sql.DB) (database.Driver, error) {
		return mysql.WithInstance(db, &mysql.Config{})
	}},
	"postgres": {"postgres", func(db *sql.DB) (database.Driver, error) {
		return postgres.WithInstance(db, &postgres.Config{})
	}},
}

// Migrator applies the embedded schema for one dialect
type Migrator struct {
	dialect string
	m       *migrate.Migrate
	logger  *zap.Logger
}

// New creates a migrator for dialect over db. Closing the migrator closes db.
func New(db *sql.DB, dialect string, logger *zap.Logger) (*Migrator, error) {
	drv, ok := drivers[dialect]
	if !ok {
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}

	instance, err := drv.open(db)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s migrations: %w", dialect, err)
	}
	src, err := iofs.New(migrations, "sql/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, drv.name, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	logger = logger.With(zap.String("dialect", dialect))
	m.Log = zapLogger{logger: logger}

	return &Migrator{
		dialect: dialect,
		m:       m,
		logger:  logger,
	}, nil
}

// Up applies pending migrations. On cancellation the current migration is
// allowed to finish and no further ones start.
func (m *Migrator) Up(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- m.m.Up()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		m.m.GracefulStop <- true
		<-done
		return fmt.Errorf("migrations cancelled: %w", ctx.Err())
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Debug("Schema is up to date")
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	default:
		version, _, _ := m.Version()
		m.logger.Info("Schema migrated", zap.Uint("version", version))
	}
	return nil
}

// Version returns the applied version; zero means nothing was applied yet
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the source and the database
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

// zapLogger adapts zap to migrate.Logger
type zapLogger struct {
	logger *zap.Logger
}

func (l zapLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l zapLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
