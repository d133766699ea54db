package database

import (
	"context"
	"fmt"
	"time"

	"ipwatch/internal/config"
	"ipwatch/internal/database/migration"

	"go.uber.org/zap"
)

const migrateTimeout = 5 * time.Minute

// New opens the history database described by cfg, bringing the schema up
// to date first when auto_migrate is set
func New(ctx context.Context, cfg *config.HistoryConfig, logger *zap.Logger) (DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if _, err := lookupDialect(cfg.Driver); err != nil {
		return nil, err
	}

	opts := OptionsFrom(cfg)
	if cfg.AutoMigrate {
		if err := migrate(ctx, cfg.Driver, cfg.DSN, opts, logger); err != nil {
			return nil, err
		}
	}

	return Open(ctx, cfg.Driver, cfg.DSN, opts, logger)
}

// migrate runs the embedded migrations on a dedicated pool, since the
// migrator closes the connection it is given
func migrate(ctx context.Context, name, dsn string, opts Options, logger *zap.Logger) error {
	db, err := Open(ctx, name, dsn, opts, logger)
	if err != nil {
		return err
	}

	m, err := migration.New(db.Unwrap(), name, logger)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()
	return m.Up(ctx)
}
