package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"ipwatch/internal/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("IPWATCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IPWATCH_TEST_REDIS_ADDR not set")
	}

	cfg := &config.RedisConfig{
		Addr:        addr,
		Key:         fmt.Sprintf("ipwatch:test:%d", time.Now().UnixNano()),
		DialTimeout: 2 * time.Second,
	}
	store, err := NewRedisStore(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() {
		_ = store.client.Del(context.Background(), cfg.Key).Err()
		_ = store.Close()
	}()

	testStoreContract(t, store)
}
