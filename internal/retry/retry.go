// Package retry provides a bounded retry policy with exponential backoff and
// a terminal fallback value. Callers of Execute never see the underlying
// transient error: after the final failed attempt the fallback supplies a
// degraded result instead.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy configures retry behavior.
type Policy struct {
	MaxRetries   int           // Maximum number of attempts (minimum 1)
	InitialDelay time.Duration // Delay before the second attempt
	Multiplier   float64       // Backoff multiplier applied per attempt
	MaxDelay     time.Duration // Cap on the backoff delay
	Logger       *slog.Logger  // Per-attempt visibility; slog.Default() when nil
}

// DefaultPolicy returns a sensible default configuration.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
	}
}

// Operation is a single fallible attempt.
type Operation[T any] func(ctx context.Context) (T, error)

// Fallback produces the degraded value after retries are exhausted or a
// non-retryable error occurs. attempts is the number of invocations made.
type Fallback[T any] func(err error, attempts int) T

// Execute runs op until it succeeds, a non-retryable error occurs, or
// MaxRetries attempts have been made. On exhaustion the fallback is invoked
// exactly once and its value returned.
func Execute[T any](ctx context.Context, p *Policy, op Operation[T], retryable func(error) bool, fallback Fallback[T]) T {
	if p == nil {
		p = DefaultPolicy()
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	maxAttempts := p.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fallback(ctx.Err(), attempt-1)
			case <-time.After(p.backoff(attempt)):
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v
		}
		lastErr = err

		log.Debug("retryable operation failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err)

		if retryable != nil && !retryable(err) {
			return fallback(err, attempt)
		}
		if ctx.Err() != nil {
			return fallback(ctx.Err(), attempt)
		}
	}

	return fallback(lastErr, maxAttempts)
}

// backoff returns the delay preceding the given attempt (attempt >= 2):
// min(InitialDelay * Multiplier^(attempt-2), MaxDelay).
func (p *Policy) backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2.0
	}
	for i := 2; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
