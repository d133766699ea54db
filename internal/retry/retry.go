package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Func defines the function signature for a retryable operation
type Func func(ctx context.Context) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Execute runs op until it succeeds, returns a permanent error, ctx is done,
// or cfg.Attempts is exhausted. The last error is returned wrapped.
func Execute(ctx context.Context, cfg *Config, logger *zap.Logger, op Func) error {
	if cfg == nil || cfg.Attempts <= 1 {
		return unwrapPermanent(op(ctx))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return unwrapPermanent(lastErr)
		}
		if attempt == cfg.Attempts {
			break
		}

		delay := cfg.backoff(attempt)
		logger.Warn("Attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("attempts", cfg.Attempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), lastErr))
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.Attempts, lastErr)
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}
