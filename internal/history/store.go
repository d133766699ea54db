package history

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"ipwatch/internal/config"
	"ipwatch/internal/database"
	"ipwatch/internal/retry"
	"ipwatch/internal/types"

	"go.uber.org/zap"
)

const (
	// DefaultRecentLimit is used when Recent is called with a non-positive limit
	DefaultRecentLimit = 20
	// MaxRecentLimit bounds a single Recent call
	MaxRecentLimit = 500
)

// Store is the append-only ledger of observed addresses.
// Append is the only mutating operation and is serialized by every implementation.
type Store interface {
	// LastAddress returns the most recently appended address, or false if nothing was ever appended
	LastAddress(ctx context.Context) (netip.Addr, bool, error)
	// Append durably records addr stamped with the current UTC time
	Append(ctx context.Context, addr netip.Addr) (types.Observation, error)
	// Recent returns up to limit observations, newest first
	Recent(ctx context.Context, limit int) ([]types.Observation, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open opens the store selected by cfg.Driver, creating its structure if missing
func Open(ctx context.Context, cfg *config.HistoryConfig, logger *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid history config: %w", types.ErrConfiguration, err)
	}

	var store Store
	op := func(ctx context.Context) error {
		var err error
		store, err = open(ctx, cfg, logger)
		return err
	}

	// SQLite is local, so a failure there is not worth waiting on
	if cfg.Driver == "sqlite" {
		if err := op(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	if err := retry.Execute(ctx, &cfg.ConnectRetry, logger, op); err != nil {
		return nil, err
	}
	return store, nil
}

func open(ctx context.Context, cfg *config.HistoryConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisStore(ctx, &cfg.Redis, logger)
	default:
		db, err := database.New(ctx, cfg, logger)
		if err != nil {
			if errors.Is(err, types.ErrInvalidDriver) {
				err = retry.Permanent(err)
			}
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		return NewSQLStore(db, logger), nil
	}
}

// clampLimit applies the Recent defaults
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}

// parseAddress parses a stored address column
func parseAddress(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("corrupt stored address %q: %w", s, err)
	}
	return addr, nil
}
