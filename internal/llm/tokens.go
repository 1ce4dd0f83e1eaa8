package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// tiktokenCount counts tokens with the cl100k_base encoding shared by the
// OpenAI-compatible chat models. Returns -1 when the encoding cannot be
// loaded so callers can fall back to the byte estimate.
func tiktokenCount(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return -1
	}
	return len(encoding.Encode(text, nil, nil))
}

// EstimateTokens is the provider-agnostic fallback: ceil(bytes/4).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// CountTextTokens prefers the vendor-faithful counter when one exists for
// the provider family and falls back to the byte estimate.
func CountTextTokens(provider ProviderType, text string) int {
	if text == "" {
		return 0
	}
	switch provider {
	case ProviderOpenAI, ProviderXAI:
		if n := tiktokenCount(text); n >= 0 {
			return n
		}
	}
	return EstimateTokens(text)
}

// CountPromptTokens counts a system prompt plus messages, with a small
// fixed overhead per message for role framing.
func CountPromptTokens(provider ProviderType, system string, messages []Message) int {
	const perMessageOverhead = 4
	total := CountTextTokens(provider, system)
	for _, m := range messages {
		total += CountTextTokens(provider, m.Content) + perMessageOverhead
	}
	return total
}
