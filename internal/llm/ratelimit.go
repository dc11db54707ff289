package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig configures request-rate limiting for LLM providers.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of API calls per minute (0 = unlimited)
	RequestsPerMinute int
	// BurstSize allows a temporary burst above the steady rate
	BurstSize int
}

// DefaultRateLimitConfig returns conservative defaults suitable for
// free-tier cloud APIs.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
	}
}

// RateLimitProvider wraps a provider with a token-bucket request limiter.
// Both Complete and Embed draw from the same bucket, since both count against
// the upstream API quota.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	burst := config.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &RateLimitProvider{
		inner:      inner,
		config:     config,
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Complete waits for request capacity, then delegates.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, prompt, opts)
}

// Embed waits for request capacity, then delegates.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// waitForCapacity blocks until a request token is available or ctx is done.
func (r *RateLimitProvider) waitForCapacity(ctx context.Context) error {
	if r.config.RequestsPerMinute <= 0 {
		return nil
	}

	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		// Time until one token accrues.
		perToken := time.Minute / time.Duration(r.config.RequestsPerMinute)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(perToken):
		}
	}
}

// refill accrues tokens based on elapsed time. Caller holds r.mu.
func (r *RateLimitProvider) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	r.lastRefill = now

	burst := float64(r.config.BurstSize)
	if burst < 1 {
		burst = 1
	}
	r.tokens += elapsed.Minutes() * float64(r.config.RequestsPerMinute)
	if r.tokens > burst {
		r.tokens = burst
	}
}

// WithRateLimit wraps a provider with rate limiting. A nil provider passes
// through unchanged so LLM-free operation keeps working.
func WithRateLimit(p Provider, config *RateLimitConfig) Provider {
	if p == nil {
		return nil
	}
	return NewRateLimitProvider(p, config)
}
