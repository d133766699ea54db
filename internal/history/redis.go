package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"ipwatch/internal/config"
	"ipwatch/internal/types"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// record is the JSON element stored in the history list
type record struct {
	IP        string `json:"ip"`
	ChangedAt string `json:"changed_at"`
}

// RedisStore implements Store on a redis list, oldest element first.
// Observation IDs are 1-based list positions.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewRedisStore connects to redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, fmt.Errorf("redis configuration is nil or empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    4,
	})

	s := newRedisStore(client, cfg.Key, logger)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connect error: %w", err)
	}

	return s, nil
}

func newRedisStore(client *redis.Client, key string, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger,
	}
}

// LastAddress returns the tail of the list
func (s *RedisStore) LastAddress(ctx context.Context) (netip.Addr, bool, error) {
	raw, err := s.client.LIndex(ctx, s.key, -1).Result()
	if errors.Is(err, redis.Nil) {
		return netip.Addr{}, false, nil
	}
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("%w: failed to read last address: %w", types.ErrStoreRead, err)
	}

	obs, err := decodeRecord(raw)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("%w: %w", types.ErrStoreRead, err)
	}
	return obs.Address, true, nil
}

// Append pushes a new element; RPUSH is acknowledged only after the write
func (s *RedisStore) Append(ctx context.Context, addr netip.Addr) (types.Observation, error) {
	if !addr.IsValid() {
		return types.Observation{}, fmt.Errorf("%w: invalid address", types.ErrStoreWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obs := types.NewObservation(addr)
	data, err := json.Marshal(record{
		IP:        addr.String(),
		ChangedAt: obs.ObservedAt.Format(timeLayout),
	})
	if err != nil {
		return types.Observation{}, fmt.Errorf("%w: failed to encode observation: %w", types.ErrStoreWrite, err)
	}

	n, err := s.client.RPush(ctx, s.key, data).Result()
	if err != nil {
		return types.Observation{}, fmt.Errorf("%w: failed to push %s: %w", types.ErrStoreWrite, addr, err)
	}
	obs.ID = n

	s.logger.Debug("Recorded observation",
		zap.Int64("id", obs.ID),
		zap.String("address", addr.String()))
	return obs, nil
}

// Recent returns the newest elements first
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]types.Observation, error) {
	limit = clampLimit(limit)

	var (
		length *redis.IntCmd
		items  *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		length = pipe.LLen(ctx, s.key)
		items = pipe.LRange(ctx, s.key, int64(-limit), -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read history: %w", types.ErrStoreRead, err)
	}

	raws := items.Val()
	total := length.Val()
	result := make([]types.Observation, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		obs, err := decodeRecord(raws[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrStoreRead, err)
		}
		obs.ID = total - int64(len(raws)-1-i)
		result = append(result, obs)
	}

	return result, nil
}

// Ping checks the redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// decodeRecord parses one list element
func decodeRecord(raw string) (types.Observation, error) {
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return types.Observation{}, fmt.Errorf("corrupt history element: %w", err)
	}

	addr, err := parseAddress(r.IP)
	if err != nil {
		return types.Observation{}, err
	}
	at, err := time.Parse(timeLayout, r.ChangedAt)
	if err != nil {
		return types.Observation{}, fmt.Errorf("invalid time %q: %w", r.ChangedAt, err)
	}

	return types.Observation{Address: addr, ObservedAt: at}, nil
}
