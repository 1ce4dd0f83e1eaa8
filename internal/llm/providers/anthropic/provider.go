// Package anthropic adapts the Anthropic Messages API to the provider
// contract. Moderator turns always run here.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"rostra/internal/llm"
)

const defaultModel = "claude-sonnet-4-5-20250929"

// Provider implements llm.Provider for Claude models.
type Provider struct {
	client     *anthropic.Client
	configured bool
	model      string
}

// NewProvider creates an Anthropic adapter. An empty API key yields an
// unconfigured provider whose calls fail with an auth error.
func NewProvider(apiKey string) *Provider {
	p := &Provider{model: defaultModel}
	if apiKey == "" {
		return p
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	p.client = &client
	p.configured = true
	return p
}

func (p *Provider) Type() llm.ProviderType { return llm.ProviderAnthropic }

func (p *Provider) Info() llm.Info {
	return llm.Info{Type: llm.ProviderAnthropic, DefaultModel: p.model, Configured: p.configured}
}

func (p *Provider) IsConfigured() bool { return p.configured }

func (p *Provider) CountTokens(text string) int {
	return llm.CountTextTokens(llm.ProviderAnthropic, text)
}

func (p *Provider) CountMessageTokens(system string, messages []llm.Message) int {
	return llm.CountPromptTokens(llm.ProviderAnthropic, system, messages)
}

func (p *Provider) buildParams(params llm.GenerateParams) (anthropic.MessageNewParams, error) {
	model := params.Model
	if model == "" {
		model = p.model
	}
	messages, err := convertMessages(params.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(params.MaxTokens),
	}
	if params.Temperature > 0 {
		apiParams.Temperature = anthropic.Float(params.Temperature)
	}
	if params.System != "" {
		apiParams.System = []anthropic.TextBlockParam{{Type: "text", Text: params.System}}
	}
	return apiParams, nil
}

// Generate produces one complete response.
func (p *Provider) Generate(ctx context.Context, params llm.GenerateParams) (*llm.Result, error) {
	if !p.configured {
		return nil, llm.NewProviderError(llm.ProviderAnthropic, llm.KindAuthError, 0, errors.New("ANTHROPIC_API_KEY not set"))
	}
	apiParams, err := p.buildParams(params)
	if err != nil {
		return nil, llm.NewProviderError(llm.ProviderAnthropic, llm.KindInvalidReq, 0, err)
	}
	start := time.Now()
	msg, err := p.client.Messages.New(ctx, apiParams)
	if err != nil {
		return nil, p.classify(err)
	}
	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return &llm.Result{
		Content:      content.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		FinishReason: normalizeStopReason(string(msg.StopReason)),
		Latency:      time.Since(start),
	}, nil
}

// GenerateStream opens a streaming generation. The chunk sequence ends with
// a completion marker carrying the normalized finish reason.
func (p *Provider) GenerateStream(ctx context.Context, params llm.GenerateParams) (*llm.Stream, error) {
	if !p.configured {
		return nil, llm.NewProviderError(llm.ProviderAnthropic, llm.KindAuthError, 0, errors.New("ANTHROPIC_API_KEY not set"))
	}
	apiParams, err := p.buildParams(params)
	if err != nil {
		return nil, llm.NewProviderError(llm.ProviderAnthropic, llm.KindInvalidReq, 0, err)
	}

	out := llm.NewStream(16)
	start := time.Now()

	go func() {
		stream := p.client.Messages.NewStreaming(ctx, apiParams)
		message := anthropic.Message{}
		var content strings.Builder

		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				out.Close(nil, llm.Classify(llm.ProviderAnthropic, err))
				return
			}
			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if e.Delta.Text != "" {
					content.WriteString(e.Delta.Text)
					select {
					case <-ctx.Done():
						out.Close(nil, llm.Classify(llm.ProviderAnthropic, ctx.Err()))
						return
					default:
						out.Send(llm.Chunk{Delta: e.Delta.Text})
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out.Close(nil, p.classify(err))
			return
		}
		out.Close(&llm.Result{
			Content:      content.String(),
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			FinishReason: normalizeStopReason(string(message.StopReason)),
			Latency:      time.Since(start),
		}, nil)
	}()

	return out, nil
}

// CheckHealth performs a minimal generation to verify credentials.
func (p *Provider) CheckHealth(ctx context.Context) error {
	if !p.configured {
		return llm.NewProviderError(llm.ProviderAnthropic, llm.KindAuthError, 0, errors.New("ANTHROPIC_API_KEY not set"))
	}
	_, err := p.Generate(ctx, llm.GenerateParams{
		Messages:  []llm.Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

// classify normalizes SDK errors into the typed provider error.
func (p *Provider) classify(err error) *llm.ProviderError {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		retryAfter := parseRetryAfter(apierr.Response)
		return llm.ClassifyHTTP(llm.ProviderAnthropic, apierr.StatusCode, retryAfter, err)
	}
	return llm.Classify(llm.ProviderAnthropic, err)
}

func normalizeStopReason(reason string) llm.FinishReason {
	if reason == "max_tokens" {
		return llm.FinishMaxTokens
	}
	return llm.FinishStop
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func convertMessages(messages []llm.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return nil, fmt.Errorf("unsupported message role: %s", m.Role)
		}
	}
	return out, nil
}
