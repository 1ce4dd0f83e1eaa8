package llm

import (
	"context"
	"sync"
	"time"
)

// ProviderType identifies a provider family.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderXAI       ProviderType = "xai"
)

// FinishReason is the normalized reason a generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishMaxTokens FinishReason = "max_tokens"
)

// Info describes a configured provider.
type Info struct {
	Type         ProviderType `json:"type"`
	DefaultModel string       `json:"default_model"`
	Configured   bool         `json:"configured"`
}

// Message is one entry of conversation context. Role is "user" or
// "assistant"; system prompts travel separately in GenerateParams.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateParams are the provider-agnostic parameters for one generation.
type GenerateParams struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Result is the normalized outcome of a generation.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason FinishReason
	Latency      time.Duration
}

// Chunk is one streamed content delta.
type Chunk struct {
	Delta string
}

// Provider is the uniform capability every vendor adapter implements. The
// concrete adapters differ only in SDK calls, token counting and error
// classification.
type Provider interface {
	// Type returns the provider family.
	Type() ProviderType

	// Info describes the provider's configuration.
	Info() Info

	// IsConfigured reports whether credentials are present.
	IsConfigured() bool

	// CountTokens estimates tokens for a raw text, preferring a
	// vendor-faithful counter when one exists.
	CountTokens(text string) int

	// CountMessageTokens estimates tokens for a full prompt.
	CountMessageTokens(system string, messages []Message) int

	// Generate produces one complete, non-streamed result.
	Generate(ctx context.Context, params GenerateParams) (*Result, error)

	// GenerateStream opens a streaming generation. The returned stream is a
	// lazy finite sequence of chunks; it is not restartable.
	GenerateStream(ctx context.Context, params GenerateParams) (*Stream, error)

	// CheckHealth verifies the provider is reachable with the configured
	// credentials.
	CheckHealth(ctx context.Context) error
}

// Stream is a finite sequence of chunks terminated by a completion marker.
// The producer closes Chunks and then publishes the final Result (or error)
// exactly once; Result blocks until then.
type Stream struct {
	chunks chan Chunk

	once   sync.Once
	done   chan struct{}
	result *Result
	err    error
}

// NewStream creates a stream for a producer goroutine to fill.
func NewStream(buffer int) *Stream {
	return &Stream{
		chunks: make(chan Chunk, buffer),
		done:   make(chan struct{}),
	}
}

// Chunks returns the delta channel. It is closed by the producer when the
// sequence ends, whether normally or on error.
func (s *Stream) Chunks() <-chan Chunk {
	return s.chunks
}

// Send publishes one chunk. Producer-side only.
func (s *Stream) Send(c Chunk) {
	s.chunks <- c
}

// Close terminates the sequence with a final result or error. Safe to call
// once; subsequent calls are ignored.
func (s *Stream) Close(result *Result, err error) {
	s.once.Do(func() {
		s.result = result
		s.err = err
		close(s.chunks)
		close(s.done)
	})
}

// Result blocks until the producer closes the stream and returns the final
// normalized result, or the error that terminated the sequence.
func (s *Stream) Result(ctx context.Context) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return s.result, s.err
	}
}
