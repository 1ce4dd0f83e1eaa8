package llm

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d bytes) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestCountTextTokensAnthropicFallback(t *testing.T) {
	// Anthropic has no local tokenizer; counts come from the byte estimate.
	text := strings.Repeat("word ", 100)
	if got, want := CountTextTokens(ProviderAnthropic, text), EstimateTokens(text); got != want {
		t.Errorf("CountTextTokens(anthropic) = %d, want estimate %d", got, want)
	}
	if got := CountTextTokens(ProviderAnthropic, ""); got != 0 {
		t.Errorf("CountTextTokens(anthropic, \"\") = %d", got)
	}
}

func TestCountPromptTokensIncludesOverhead(t *testing.T) {
	system := strings.Repeat("s", 40) // 10 estimated tokens
	messages := []Message{
		{Role: "user", Content: strings.Repeat("a", 40)}, // 10 estimated tokens
		{Role: "user", Content: strings.Repeat("b", 40)},
	}
	got := CountPromptTokens(ProviderAnthropic, system, messages)
	want := 10 + (10+4)*2
	if got != want {
		t.Errorf("CountPromptTokens = %d, want %d", got, want)
	}
}

func TestCountPromptTokensEmpty(t *testing.T) {
	if got := CountPromptTokens(ProviderAnthropic, "", nil); got != 0 {
		t.Errorf("CountPromptTokens with no input = %d", got)
	}
}
