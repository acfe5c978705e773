// Package retry provides bounded exponential backoff for calls to external trackers.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	// OnRetry is called before each backoff sleep with the failed attempt number (1-based).
	OnRetry func(attempt int, err error)
	// Retryable decides which errors are retried. Nil means errors.IsRetryable.
	Retryable func(err error) bool
}

// DefaultConfig returns the defaults used for bug-tracker submissions.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Jitter:      true,
	}
}

// Do executes fn with exponential backoff. Only retryable errors are retried,
// and the context bounds the whole sequence including sleeps.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for functions that produce a result.
func DoValue[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	retryable := cfg.Retryable
	if retryable == nil {
		retryable = dberrors.IsRetryable
	}

	var (
		val T
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if !retryable(err) || attempt == attempts-1 {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return val, ctx.Err()
		case <-time.After(backoff(cfg, attempt)):
		}
	}
	return val, err
}

func backoff(cfg Config, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	}
	return delay
}
