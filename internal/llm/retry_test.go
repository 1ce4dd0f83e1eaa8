package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestRetryEventualSuccess(t *testing.T) {
	attempts := 0
	got, err := Retry(context.Background(), fastRetryConfig(), ProviderAnthropic, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewProviderError(ProviderAnthropic, KindRateLimit, 429, errors.New("slow down"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry error = %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Errorf("got %q after %d attempts, want \"ok\" after 3", got, attempts)
	}
}

func TestRetryNonRetryableFailsFast(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastRetryConfig(), ProviderOpenAI, func() (string, error) {
		attempts++
		return "", NewProviderError(ProviderOpenAI, KindAuthError, 401, errors.New("bad key"))
	})
	if attempts != 1 {
		t.Errorf("auth error retried %d times", attempts)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindAuthError {
		t.Errorf("error = %v, want auth_error ProviderError", err)
	}
}

func TestRetryExhaustionSurfacesLastError(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxRetries = 2
	attempts := 0
	_, err := Retry(context.Background(), cfg, ProviderXAI, func() (string, error) {
		attempts++
		return "", NewProviderError(ProviderXAI, KindServerError, 503, errors.New("overloaded"))
	})
	if attempts != 3 {
		t.Errorf("attempts = %d, want initial + 2 retries", attempts)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindServerError || pe.Status != 503 {
		t.Errorf("error = %v, want the provider's server_error", err)
	}
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	pe := NewProviderError(ProviderAnthropic, KindRateLimit, 429, errors.New("slow down"))
	pe.RetryAfter = 20 * time.Millisecond

	attempts := 0
	start := time.Now()
	_, err := Retry(context.Background(), fastRetryConfig(), ProviderAnthropic, func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", pe
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("retry fired after %v, before the server's retry-after hint", elapsed)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := Retry(ctx, fastRetryConfig(), ProviderAnthropic, func() (string, error) {
		attempts++
		cancel()
		return "", NewProviderError(ProviderAnthropic, KindRateLimit, 429, errors.New("slow down"))
	})
	if err == nil {
		t.Fatal("Retry succeeded after cancellation")
	}
	if attempts > 1 {
		t.Errorf("retry kept going after cancel: %d attempts", attempts)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  ErrorKind
		retryable bool
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"cancel", context.Canceled, KindTimeout, false},
		{"opaque", errors.New("mystery"), KindUnknown, false},
		{"passthrough", NewProviderError(ProviderOpenAI, KindContentFilter, 400, nil), KindContentFilter, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := Classify(ProviderOpenAI, tt.err)
			if pe.Kind != tt.wantKind {
				t.Errorf("Classify kind = %s, want %s", pe.Kind, tt.wantKind)
			}
			if pe.Retryable != tt.retryable {
				t.Errorf("Classify retryable = %v, want %v", pe.Retryable, tt.retryable)
			}
		})
	}
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		status   int
		wantKind ErrorKind
	}{
		{429, KindRateLimit},
		{401, KindAuthError},
		{403, KindAuthError},
		{400, KindInvalidReq},
		{413, KindContextLength},
		{500, KindServerError},
		{503, KindServerError},
		{0, KindNetworkError},
		{418, KindUnknown},
	}
	for _, tt := range tests {
		pe := ClassifyHTTP(ProviderAnthropic, tt.status, 0, errors.New("x"))
		if pe.Kind != tt.wantKind {
			t.Errorf("ClassifyHTTP(%d) kind = %s, want %s", tt.status, pe.Kind, tt.wantKind)
		}
	}
}
