package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errTransient = errors.New("connection refused")

func fastConfig(attempts int) *Config {
	return &Config{Attempts: attempts, Interval: time.Millisecond, MaxInterval: 4 * time.Millisecond}
}

func TestExecuteSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Execute(context.Background(), fastConfig(5), zaptest.NewLogger(t), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhausted(t *testing.T) {
	calls := 0
	err := Execute(context.Background(), fastConfig(3), zaptest.NewLogger(t), func(context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestExecutePermanent(t *testing.T) {
	errBad := errors.New("bad dsn")
	calls := 0
	err := Execute(context.Background(), fastConfig(5), zaptest.NewLogger(t), func(context.Context) error {
		calls++
		return Permanent(errBad)
	})
	assert.Equal(t, errBad, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteSingleAttempt(t *testing.T) {
	for _, cfg := range []*Config{nil, {Attempts: 0}, {Attempts: 1}} {
		calls := 0
		err := Execute(context.Background(), cfg, zaptest.NewLogger(t), func(context.Context) error {
			calls++
			return Permanent(errTransient)
		})
		assert.Equal(t, errTransient, err)
		assert.Equal(t, 1, calls)
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{Attempts: 5, Interval: time.Hour}

	calls := 0
	err := Execute(ctx, cfg, zaptest.NewLogger(t), func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := &Config{Attempts: 10, Interval: time.Second, MaxInterval: 5 * time.Second}
	assert.Equal(t, time.Second, cfg.backoff(1))
	assert.Equal(t, 2*time.Second, cfg.backoff(2))
	assert.Equal(t, 4*time.Second, cfg.backoff(3))
	assert.Equal(t, 5*time.Second, cfg.backoff(4))
	assert.Equal(t, 5*time.Second, cfg.backoff(9))

	unbounded := &Config{Attempts: 3, Interval: time.Second}
	assert.Equal(t, 4*time.Second, unbounded.backoff(3))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{Attempts: -1}).Validate())
	assert.Error(t, (&Config{Attempts: 2, Interval: -time.Second}).Validate())
	assert.Error(t, (&Config{Attempts: 2, Interval: time.Minute, MaxInterval: time.Second}).Validate())
}
