package safety

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	topicMinLen    = 10
	topicMaxLen    = 500
	ruleMinLen     = 5
	ruleMaxLen     = 200
	maxCustomRules = 5
)

// Config toggles the pipeline's layers independently.
type Config struct {
	StrictMode       bool
	EnablePatterns   bool
	EnableModeration bool
	EnableSemantic   bool
}

// DebateInput is the raw client-supplied configuration under validation.
type DebateInput struct {
	Topic       string
	CustomRules []string
}

// SanitizedInput is the cleaned configuration after all layers pass.
type SanitizedInput struct {
	Topic       string
	CustomRules []string
}

// Result is the pipeline's verdict. Invariant: Blocked implies Sanitized is
// nil and Errors is non-empty.
type Result struct {
	OK          bool
	Blocked     bool
	BlockReason string
	Errors      []string
	Findings    []Finding
	Sanitized   *SanitizedInput
}

// Pipeline evaluates the three safety layers strictly in order on the
// ORIGINAL input, then sanitizes. Each layer's block short-circuits the
// rest; a layer without credentials degrades to a pass-through.
type Pipeline struct {
	cfg        Config
	patterns   *PatternScreen
	moderation *Moderation
	semantic   *SemanticFilter
	logger     *slog.Logger
}

// NewPipeline assembles the layers. moderation and semantic may be wired
// with nil clients.
func NewPipeline(cfg Config, patterns *PatternScreen, moderation *Moderation, semantic *SemanticFilter, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		patterns:   patterns,
		moderation: moderation,
		semantic:   semantic,
		logger:     logger,
	}
}

// Validate screens and sanitizes a debate configuration.
func (p *Pipeline) Validate(ctx context.Context, input DebateInput) *Result {
	result := &Result{}

	if len(input.CustomRules) > maxCustomRules {
		result.Errors = append(result.Errors, fmt.Sprintf("at most %d custom rules are allowed", maxCustomRules))
		return result
	}

	texts := append([]string{input.Topic}, input.CustomRules...)
	masked := make([]string, len(texts))

	for i, text := range texts {
		m, blocked := p.screenText(ctx, text, result)
		if blocked {
			result.Blocked = true
			result.Errors = append(result.Errors, blockMessage(result.BlockReason))
			result.Sanitized = nil
			return result
		}
		masked[i] = m
	}

	// All layers passed; sanitize for storage and enforce shape.
	sanitized := &SanitizedInput{}
	topic, _ := Sanitize(masked[0], ContextStorage)
	if len(topic) < topicMinLen || len(topic) > topicMaxLen {
		result.Errors = append(result.Errors, fmt.Sprintf("topic must be between %d and %d characters", topicMinLen, topicMaxLen))
	}
	sanitized.Topic = topic

	for _, rule := range masked[1:] {
		clean, _ := Sanitize(rule, ContextStorage)
		if len(clean) < ruleMinLen || len(clean) > ruleMaxLen {
			result.Errors = append(result.Errors, fmt.Sprintf("custom rules must be between %d and %d characters", ruleMinLen, ruleMaxLen))
			continue
		}
		sanitized.CustomRules = append(sanitized.CustomRules, clean)
	}

	if len(result.Errors) > 0 {
		return result
	}
	result.OK = true
	result.Sanitized = sanitized
	return result
}

// screenText runs the three layers over one text. Returns the (possibly
// profanity-masked) text and whether a layer blocked.
func (p *Pipeline) screenText(ctx context.Context, text string, result *Result) (string, bool) {
	masked := text

	if p.cfg.EnablePatterns && p.patterns != nil {
		screen := p.patterns.Screen(text)
		result.Findings = append(result.Findings, screen.Findings...)
		if screen.Blocked {
			result.BlockReason = string(screen.BlockReason)
			return masked, true
		}
		masked = screen.Masked
	}

	if p.cfg.EnableModeration && p.moderation != nil {
		verdict, err := p.moderation.Check(ctx, text)
		if err != nil {
			// Degraded layer: log and fall through to the next one.
			p.logger.Warn("moderation layer degraded", "error", err)
		} else if verdict.Flagged {
			result.BlockReason = verdict.BlockReason
			return masked, true
		}
	}

	if p.cfg.EnableSemantic && p.semantic != nil {
		verdict, err := p.semantic.Check(ctx, text)
		if err != nil {
			p.logger.Warn("semantic layer degraded", "error", err)
		} else if verdict.Flagged {
			result.BlockReason = verdict.BlockReason
			return masked, true
		}
	}

	return masked, false
}

func blockMessage(reason string) string {
	switch reason {
	case "prompt_injection":
		return "input appears to contain prompt injection"
	case "harmful_content":
		return "input appears to request harmful content"
	case "sensitive_topic":
		return "input touches a sensitive topic that cannot be debated"
	case "content_policy":
		return "input violates the content policy"
	default:
		return "input was blocked by the safety screen"
	}
}
