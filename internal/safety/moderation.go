package safety

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
)

// ModerationScores are per-category scores in [0,1] from the moderation
// service, keyed by the vendor's category names.
type ModerationScores map[string]float64

// ModerationClient abstracts the external moderation call-out so tests can
// script verdicts.
type ModerationClient interface {
	Moderate(ctx context.Context, input string) (ModerationScores, bool, error)
}

// ModerationVerdict is the second layer's decision.
type ModerationVerdict struct {
	Flagged     bool
	BlockReason string
	Category    string
	Score       float64
}

// Custom thresholds, stricter than the vendor's own flagging. Any score at
// or above its threshold blocks.
var moderationThresholds = map[string]float64{
	"sexual/minors":          0.1,
	"sexual":                 0.5,
	"violence":               0.5,
	"violence/graphic":       0.4,
	"hate":                   0.5,
	"hate/threatening":       0.3,
	"harassment":             0.6,
	"harassment/threatening": 0.3,
	"self-harm":              0.2,
	"self-harm/intent":       0.2,
	"self-harm/instructions": 0.1,
	"illicit":                0.4,
	"illicit/violent":        0.2,
}

// blockReasonForCategory maps a vendor category to the pipeline's block
// reason vocabulary.
func blockReasonForCategory(category string) string {
	switch category {
	case "sexual", "sexual/minors", "self-harm", "self-harm/intent", "self-harm/instructions":
		return "sensitive_topic"
	case "violence", "violence/graphic", "hate", "hate/threatening", "harassment", "harassment/threatening":
		return "harmful_content"
	default:
		return "content_policy"
	}
}

// Moderation is the external moderation layer. A nil client degrades to a
// pass-through without affecting the other layers.
type Moderation struct {
	client ModerationClient
	logger *slog.Logger
}

// NewModeration wires the layer; client may be nil when no credentials are
// configured.
func NewModeration(client ModerationClient, logger *slog.Logger) *Moderation {
	return &Moderation{client: client, logger: logger}
}

// Check runs the moderation call-out and applies the custom thresholds.
func (m *Moderation) Check(ctx context.Context, input string) (ModerationVerdict, error) {
	if m.client == nil {
		return ModerationVerdict{}, nil
	}
	scores, vendorFlagged, err := m.client.Moderate(ctx, input)
	if err != nil {
		return ModerationVerdict{}, fmt.Errorf("moderation call: %w", err)
	}

	verdict := ModerationVerdict{}
	for category, score := range scores {
		threshold, ok := moderationThresholds[category]
		if !ok {
			continue
		}
		if score >= threshold && score > verdict.Score {
			verdict.Flagged = true
			verdict.Category = category
			verdict.Score = score
			verdict.BlockReason = blockReasonForCategory(category)
		}
	}
	if !verdict.Flagged && vendorFlagged {
		verdict.Flagged = true
		verdict.BlockReason = "content_policy"
	}
	if verdict.Flagged {
		m.logger.Warn("moderation flagged input",
			"category", verdict.Category,
			"score", verdict.Score,
		)
	}
	return verdict, nil
}

// OpenAIModerationClient calls the OpenAI moderation endpoint.
type OpenAIModerationClient struct {
	client *openai.Client
}

// NewOpenAIModerationClient wraps an openai client for moderation.
func NewOpenAIModerationClient(client *openai.Client) *OpenAIModerationClient {
	return &OpenAIModerationClient{client: client}
}

// Moderate returns per-category scores and the vendor's own flag.
func (c *OpenAIModerationClient) Moderate(ctx context.Context, input string) (ModerationScores, bool, error) {
	resp, err := c.client.Moderations.New(ctx, openai.ModerationNewParams{
		Model: openai.ModerationModelOmniModerationLatest,
		Input: openai.ModerationNewParamsInputUnion{
			OfString: openai.String(input),
		},
	})
	if err != nil {
		return nil, false, err
	}
	if len(resp.Results) == 0 {
		return ModerationScores{}, false, nil
	}
	r := resp.Results[0]
	s := r.CategoryScores
	scores := ModerationScores{
		"harassment":             s.Harassment,
		"harassment/threatening": s.HarassmentThreatening,
		"hate":                   s.Hate,
		"hate/threatening":       s.HateThreatening,
		"illicit":                s.Illicit,
		"illicit/violent":        s.IllicitViolent,
		"self-harm":              s.SelfHarm,
		"self-harm/instructions": s.SelfHarmInstructions,
		"self-harm/intent":       s.SelfHarmIntent,
		"sexual":                 s.Sexual,
		"sexual/minors":          s.SexualMinors,
		"violence":               s.Violence,
		"violence/graphic":       s.ViolenceGraphic,
	}
	return scores, r.Flagged, nil
}
