// Package openai adapts the OpenAI Chat Completions API to the provider
// contract. xAI exposes the same wire protocol, so the grok adapter is this
// provider pointed at the xAI base URL.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"rostra/internal/llm"
)

const (
	defaultOpenAIModel = "gpt-4o"
	defaultXAIModel    = "grok-3"
	xaiBaseURL         = "https://api.x.ai/v1"
)

// Config selects the provider family, credentials and endpoint.
type Config struct {
	Type    llm.ProviderType
	APIKey  string
	BaseURL string
	Model   string
}

// Provider implements llm.Provider over the Chat Completions protocol.
type Provider struct {
	client     *openai.Client
	ptype      llm.ProviderType
	model      string
	configured bool
}

// NewProvider builds an adapter from an explicit config.
func NewProvider(cfg Config) *Provider {
	p := &Provider{ptype: cfg.Type, model: cfg.Model}
	if cfg.APIKey == "" {
		return p
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	p.client = &client
	p.configured = true
	return p
}

// NewOpenAI builds the chatgpt-family adapter.
func NewOpenAI(apiKey string) *Provider {
	return NewProvider(Config{Type: llm.ProviderOpenAI, APIKey: apiKey, Model: defaultOpenAIModel})
}

// NewXAI builds the grok-family adapter against the xAI endpoint.
func NewXAI(apiKey string) *Provider {
	return NewProvider(Config{Type: llm.ProviderXAI, APIKey: apiKey, BaseURL: xaiBaseURL, Model: defaultXAIModel})
}

func (p *Provider) Type() llm.ProviderType { return p.ptype }

func (p *Provider) Info() llm.Info {
	return llm.Info{Type: p.ptype, DefaultModel: p.model, Configured: p.configured}
}

func (p *Provider) IsConfigured() bool { return p.configured }

func (p *Provider) CountTokens(text string) int {
	return llm.CountTextTokens(p.ptype, text)
}

func (p *Provider) CountMessageTokens(system string, messages []llm.Message) int {
	return llm.CountPromptTokens(p.ptype, system, messages)
}

func (p *Provider) buildParams(params llm.GenerateParams) openai.ChatCompletionNewParams {
	model := params.Model
	if model == "" {
		model = p.model
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(params.Messages)+1)
	if params.System != "" {
		messages = append(messages, openai.SystemMessage(params.System))
	}
	for _, m := range params.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	apiParams := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if params.MaxTokens > 0 {
		apiParams.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	if params.Temperature > 0 {
		apiParams.Temperature = openai.Float(params.Temperature)
	}
	return apiParams
}

// Generate produces one complete response.
func (p *Provider) Generate(ctx context.Context, params llm.GenerateParams) (*llm.Result, error) {
	if !p.configured {
		return nil, p.unconfiguredError()
	}
	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(params))
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewProviderError(p.ptype, llm.KindUnknown, 0, errors.New("response contained no choices"))
	}
	choice := resp.Choices[0]
	return &llm.Result{
		Content:      choice.Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		FinishReason: normalizeFinishReason(string(choice.FinishReason)),
		Latency:      time.Since(start),
	}, nil
}

// GenerateStream opens a streaming generation.
func (p *Provider) GenerateStream(ctx context.Context, params llm.GenerateParams) (*llm.Stream, error) {
	if !p.configured {
		return nil, p.unconfiguredError()
	}
	apiParams := p.buildParams(params)
	apiParams.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	out := llm.NewStream(16)
	start := time.Now()

	go func() {
		stream := p.client.Chat.Completions.NewStreaming(ctx, apiParams)
		acc := openai.ChatCompletionAccumulator{}
		var content strings.Builder
		finish := ""

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				finish = choice.FinishReason
			}
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				select {
				case <-ctx.Done():
					out.Close(nil, llm.Classify(p.ptype, ctx.Err()))
					return
				default:
					out.Send(llm.Chunk{Delta: choice.Delta.Content})
				}
			}
		}
		if err := stream.Err(); err != nil {
			out.Close(nil, p.classify(err))
			return
		}
		result := &llm.Result{
			Content:      content.String(),
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
			FinishReason: normalizeFinishReason(finish),
			Latency:      time.Since(start),
		}
		if result.OutputTokens == 0 {
			// Some OpenAI-compatible endpoints omit usage on streams.
			result.OutputTokens = p.CountTokens(result.Content)
		}
		out.Close(result, nil)
	}()

	return out, nil
}

// CheckHealth performs a minimal generation to verify credentials.
func (p *Provider) CheckHealth(ctx context.Context) error {
	if !p.configured {
		return p.unconfiguredError()
	}
	_, err := p.Generate(ctx, llm.GenerateParams{
		Messages:  []llm.Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

func (p *Provider) unconfiguredError() *llm.ProviderError {
	return llm.NewProviderError(p.ptype, llm.KindAuthError, 0, errors.New("API key not set for "+string(p.ptype)))
}

func (p *Provider) classify(err error) *llm.ProviderError {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return llm.ClassifyHTTP(p.ptype, apierr.StatusCode, parseRetryAfter(apierr.Response), err)
	}
	return llm.Classify(p.ptype, err)
}

func normalizeFinishReason(reason string) llm.FinishReason {
	if reason == "length" {
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
