package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"ipwatch/internal/database"
	"ipwatch/internal/types"

	"go.uber.org/zap"
)

const (
	// timeLayout is the changed_at column format
	timeLayout = time.RFC3339Nano

	defaultQueryTimeout = 10 * time.Second
)

// SQLStore implements Store on the ip_history table
type SQLStore struct {
	db     database.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSQLStore creates a store over an opened and migrated database
func NewSQLStore(db database.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger,
	}
}

// LastAddress returns the address of the newest row
func (s *SQLStore) LastAddress(ctx context.Context) (netip.Addr, bool, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	var ip string
	err := s.db.QueryRowContext(ctx, "SELECT ip FROM ip_history ORDER BY id DESC LIMIT 1").Scan(&ip)
	if errors.Is(err, sql.ErrNoRows) {
		return netip.Addr{}, false, nil
	}
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("%w: failed to query last address: %w", types.ErrStoreRead, err)
	}

	addr, err := parseAddress(ip)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("%w: %w", types.ErrStoreRead, err)
	}
	return addr, true, nil
}

// Append inserts a new row; it returns once the insert is committed
func (s *SQLStore) Append(ctx context.Context, addr netip.Addr) (types.Observation, error) {
	if !addr.IsValid() {
		return types.Observation{}, fmt.Errorf("%w: invalid address", types.ErrStoreWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obs := types.NewObservation(addr)
	changedAt := obs.ObservedAt.Format(timeLayout)

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if s.db.Returning() {
			return tx.QueryRowContext(ctx,
				s.db.Rebind("INSERT INTO ip_history (ip, changed_at) VALUES (?, ?) RETURNING id"),
				addr.String(), changedAt).Scan(&obs.ID)
		}

		result, err := tx.ExecContext(ctx,
			"INSERT INTO ip_history (ip, changed_at) VALUES (?, ?)",
			addr.String(), changedAt)
		if err != nil {
			return err
		}
		obs.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return types.Observation{}, fmt.Errorf("%w: failed to insert %s: %w", types.ErrStoreWrite, addr, err)
	}

	s.logger.Debug("Recorded observation",
		zap.Int64("id", obs.ID),
		zap.String("address", addr.String()))
	return obs, nil
}

// Recent returns the newest observations first
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]types.Observation, error) {
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind("SELECT id, ip, changed_at FROM ip_history ORDER BY id DESC LIMIT ?"),
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query history: %w", types.ErrStoreRead, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var result []types.Observation
	for rows.Next() {
		var (
			obs       types.Observation
			ip        string
			changedAt string
		)
		if err := rows.Scan(&obs.ID, &ip, &changedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan history row: %w", types.ErrStoreRead, err)
		}
		if obs.Address, err = parseAddress(ip); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", types.ErrStoreRead, obs.ID, err)
		}
		if obs.ObservedAt, err = time.Parse(timeLayout, changedAt); err != nil {
			return nil, fmt.Errorf("%w: row %d has invalid time %q: %w", types.ErrStoreRead, obs.ID, changedAt, err)
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate history: %w", types.ErrStoreRead, err)
	}

	return result, nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// withDeadline bounds reads whose rows are consumed after the query returns
func withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
