package reliability

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryCondition decides whether a failed attempt should be retried.
type RetryCondition func(err error) bool

// RetryConfig tunes exponential backoff. Zero values fall back to defaults.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterMax         time.Duration
	Condition         RetryCondition
}

// DefaultRetryConfig retries transient failures only: three retries, 500ms
// base, capped at 30s with up to 250ms of jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterMax:         250 * time.Millisecond,
		Condition:         IsRetryable,
	}
}

// Retrier runs fallible operations with exponential backoff and jitter. One
// Retrier is shared by every executor goroutine, so it holds no mutable
// state of its own.
type Retrier struct {
	config RetryConfig
	logger *slog.Logger
}

// NewRetrier builds a retrier with the given config, normalizing zero values.
func NewRetrier(config RetryConfig, logger *slog.Logger) *Retrier {
	if config.BaseDelay <= 0 {
		config.BaseDelay = 500 * time.Millisecond
	}

	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}

	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 2.0
	}

	if config.Condition == nil {
		config.Condition = IsRetryable
	}

	return &Retrier{
		config: config,
		logger: logger.With("module", "retrier"),
	}
}

// Do runs op, retrying per the config. A breaker-open rejection aborts
// immediately: hammering an open circuit with retries defeats its purpose.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)

			r.logger.Debug("Retrying operation",
				"operation", name,
				"attempt", attempt,
				"max_retries", r.config.MaxRetries,
				"delay", delay)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, ErrCircuitOpen) || !r.config.Condition(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// backoff computes the sleep before the given 1-based retry attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.config.BackoffMultiplier
	}

	d := time.Duration(delay)
	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}

	if r.config.JitterMax > 0 {
		// Top-level rand is safe for concurrent use, unlike a rand.Rand.
		d += rand.N(r.config.JitterMax)
	}

	return d
}
