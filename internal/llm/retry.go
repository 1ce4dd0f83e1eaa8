package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig bounds the retry wrapper around provider calls.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// RetryableKinds widens retryability beyond each error's own flag.
	RetryableKinds map[ErrorKind]bool
}

// DefaultRetryConfig mirrors the provider quota guidance: three retries,
// doubling delay, ±20% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		RetryableKinds: map[ErrorKind]bool{
			KindRateLimit:    true,
			KindServerError:  true,
			KindNetworkError: true,
			KindTimeout:      true,
		},
	}
}

func (c RetryConfig) shouldRetry(pe *ProviderError) bool {
	if pe.Retryable {
		return true
	}
	return c.RetryableKinds[pe.Kind]
}

// Retry runs op under exponential backoff with jitter. Only errors whose
// retryable flag is set, or whose kind is in the retryable set, are
// retried; everything else propagates immediately. An error carrying a
// retry-after hint overrides the computed delay, capped at MaxDelay. The
// bound on total attempts is absolute and the last error surfaces on
// exhaustion.
func Retry[T any](ctx context.Context, cfg RetryConfig, provider ProviderType, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialDelay
	bo.MaxInterval = cfg.MaxDelay
	bo.Multiplier = cfg.Multiplier
	bo.RandomizationFactor = 0.2

	var lastErr *ProviderError
	wrapped := func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		pe := Classify(provider, err)
		lastErr = pe
		if !cfg.shouldRetry(pe) {
			return v, backoff.Permanent(pe)
		}
		if pe.RetryAfter > 0 {
			delay := pe.RetryAfter
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			return v, &backoff.RetryAfterError{Duration: delay}
		}
		return v, pe
	}

	v, err := backoff.Retry(ctx, wrapped, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(cfg.MaxRetries+1)))
	if err != nil {
		// Surface the last normalized error, not backoff's retry markers.
		var pe *ProviderError
		if errors.As(err, &pe) {
			return v, pe
		}
		if lastErr != nil {
			return v, lastErr
		}
		return v, err
	}
	return v, nil
}
