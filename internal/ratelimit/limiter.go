// Package ratelimit provides per-provider token-bucket admission shared by
// every debate in the process.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rostra/internal/llm"
)

// Quota is a provider's published per-minute allowance.
type Quota struct {
	TokensPerMinute   int
	RequestsPerMinute int
}

// DefaultQuotas covers the three provider families with conservative
// published limits. Tunable per deployment.
func DefaultQuotas() map[llm.ProviderType]Quota {
	return map[llm.ProviderType]Quota{
		llm.ProviderAnthropic: {TokensPerMinute: 80_000, RequestsPerMinute: 50},
		llm.ProviderOpenAI:    {TokensPerMinute: 90_000, RequestsPerMinute: 60},
		llm.ProviderXAI:       {TokensPerMinute: 60_000, RequestsPerMinute: 60},
	}
}

type bucket struct {
	tokens   *rate.Limiter
	requests *rate.Limiter
	burst    int
}

// Limiter holds one token bucket pair (tokens + requests) per provider.
// Waiters on the same bucket are served first-come-first-served, which
// x/time/rate guarantees for queued reservations.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[llm.ProviderType]*bucket
}

// New builds a limiter from per-provider quotas.
func New(quotas map[llm.ProviderType]Quota) *Limiter {
	l := &Limiter{buckets: make(map[llm.ProviderType]*bucket, len(quotas))}
	for provider, q := range quotas {
		l.buckets[provider] = &bucket{
			tokens:   rate.NewLimiter(rate.Limit(float64(q.TokensPerMinute)/60), q.TokensPerMinute),
			requests: rate.NewLimiter(rate.Limit(float64(q.RequestsPerMinute)/60), q.RequestsPerMinute),
			burst:    q.TokensPerMinute,
		}
	}
	return l
}

func (l *Limiter) bucket(provider llm.ProviderType) (*bucket, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.buckets[provider]
	if !ok {
		return nil, fmt.Errorf("no rate bucket for provider %s", provider)
	}
	return b, nil
}

// WaitForCapacity suspends until the provider's buckets admit one request
// and estimatedTokens tokens. A cancelled wait never consumes capacity;
// x/time/rate reimburses abandoned reservations.
func (l *Limiter) WaitForCapacity(ctx context.Context, provider llm.ProviderType, estimatedTokens int) error {
	b, err := l.bucket(provider)
	if err != nil {
		return err
	}
	if err := b.requests.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request capacity: %w", err)
	}
	n := estimatedTokens
	if n > b.burst {
		n = b.burst
	}
	if n <= 0 {
		return nil
	}
	if err := b.tokens.WaitN(ctx, n); err != nil {
		return fmt.Errorf("wait for token capacity: %w", err)
	}
	return nil
}

// ConsumeCapacity reconciles the estimate against actual usage after the
// call completes. A positive delta tightens the bucket immediately; an
// overestimate is left alone since the unused reservation already passed.
func (l *Limiter) ConsumeCapacity(provider llm.ProviderType, estimatedTokens, actualTokens int) {
	b, err := l.bucket(provider)
	if err != nil {
		return
	}
	delta := actualTokens - estimatedTokens
	if delta <= 0 {
		return
	}
	if delta > b.burst {
		delta = b.burst
	}
	// ReserveN debits the bucket without blocking the caller.
	b.tokens.ReserveN(time.Now(), delta)
}
