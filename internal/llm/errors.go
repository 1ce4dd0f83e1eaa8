package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind is the normalized classification of a provider failure.
type ErrorKind string

const (
	KindRateLimit     ErrorKind = "rate_limit"
	KindAuthError     ErrorKind = "auth_error"
	KindInvalidReq    ErrorKind = "invalid_request"
	KindContextLength ErrorKind = "context_length"
	KindContentFilter ErrorKind = "content_filter"
	KindServerError   ErrorKind = "server_error"
	KindNetworkError  ErrorKind = "network_error"
	KindTimeout       ErrorKind = "timeout"
	KindUnknown       ErrorKind = "unknown"
)

// ProviderError is the typed error every adapter normalizes SDK failures
// into. Retryable mirrors the kind's default but may be overridden per
// error, e.g. a 429 carrying an explicit retry-after.
type ProviderError struct {
	Kind       ErrorKind
	Status     int
	Provider   ProviderType
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a typed error with the kind's default
// retryability.
func NewProviderError(provider ProviderType, kind ErrorKind, status int, err error) *ProviderError {
	return &ProviderError{
		Kind:      kind,
		Status:    status,
		Provider:  provider,
		Retryable: defaultRetryable(kind),
		Err:       err,
	}
}

func defaultRetryable(kind ErrorKind) bool {
	switch kind {
	case KindRateLimit, KindServerError, KindNetworkError, KindTimeout:
		return true
	}
	return false
}

// ClassifyHTTP maps an HTTP status and headers to an error kind. Adapters
// call this after extracting the status from their SDK's error type.
func ClassifyHTTP(provider ProviderType, status int, retryAfter time.Duration, err error) *ProviderError {
	var kind ErrorKind
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthError
	case status == http.StatusRequestEntityTooLarge:
		kind = KindContextLength
	case status == http.StatusBadRequest:
		kind = KindInvalidReq
	case status >= 500:
		kind = KindServerError
	case status == 0:
		kind = KindNetworkError
	default:
		kind = KindUnknown
	}
	pe := NewProviderError(provider, kind, status, err)
	pe.RetryAfter = retryAfter
	return pe
}

// Classify normalizes an arbitrary error from an SDK call. Context and
// transport failures are recognized here; adapters handle their SDK's typed
// API error before falling back to this.
func Classify(provider ProviderType, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(provider, KindTimeout, 0, err)
	case errors.Is(err, context.Canceled):
		// Cancellation is not retryable; the caller asked to stop.
		p := NewProviderError(provider, KindTimeout, 0, err)
		p.Retryable = false
		return p
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewProviderError(provider, KindTimeout, 0, err)
		}
		return NewProviderError(provider, KindNetworkError, 0, err)
	}
	return NewProviderError(provider, KindUnknown, 0, err)
}
