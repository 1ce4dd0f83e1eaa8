// Package judge produces the post-debate rubric evaluation using the
// moderator model, with defensive JSON parsing and a per-debate cache.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"rostra/internal/domain"
	"rostra/internal/domain/debate"
	"rostra/internal/llm"
	"rostra/internal/store"
)

// Rubric categories and their score caps. Per-side totals max out at 100.
var rubric = []Category{
	{Key: "argument_quality", Label: "Argument Quality", MaxScore: 25},
	{Key: "evidence_use", Label: "Use of Evidence", MaxScore: 20},
	{Key: "rebuttal_effectiveness", Label: "Rebuttal Effectiveness", MaxScore: 20},
	{Key: "clarity", Label: "Clarity and Structure", MaxScore: 20},
	{Key: "rule_adherence", Label: "Rule Adherence", MaxScore: 15},
}

const disclaimer = "This evaluation was generated by a language model and reflects rhetorical performance in this transcript only, not the truth of either position."

type Category struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	MaxScore float64 `json:"max_score"`
}

// CategoryScore is one side's graded rubric entry.
type CategoryScore struct {
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Comment  string  `json:"comment,omitempty"`
}

// SideEvaluation is the full grade for one side, with the model identity
// revealed.
type SideEvaluation struct {
	Model      string                   `json:"model"`
	Scores     map[string]CategoryScore `json:"scores"`
	Total      float64                  `json:"total"`
	Strengths  []string                 `json:"strengths"`
	Weaknesses []string                 `json:"weaknesses"`
}

// Analysis is the judge's complete verdict for one debate.
type Analysis struct {
	DebateID       string         `json:"debate_id"`
	Topic          string         `json:"topic"`
	Format         debate.Format  `json:"format"`
	For            SideEvaluation `json:"for"`
	Against        SideEvaluation `json:"against"`
	Winner         string         `json:"winner"`
	ClashPoints    []string       `json:"clash_points"`
	TurningMoments []string       `json:"turning_moments"`
	Disclaimer     string         `json:"disclaimer"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// Analyzer runs and caches evaluations. Concurrent requests for the same
// debate coalesce into one generation.
type Analyzer struct {
	store    *store.Store
	registry *llm.Registry
	retry    llm.RetryConfig
	logger   *slog.Logger
	group    singleflight.Group
}

func NewAnalyzer(st *store.Store, registry *llm.Registry, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		store:    st,
		registry: registry,
		retry:    llm.DefaultRetryConfig(),
		logger:   logger,
	}
}

// Analyze returns the cached analysis or computes one. force bypasses the
// cache. The debate must be completed; anything earlier would leak the
// hidden assignment through the evaluation.
func (a *Analyzer) Analyze(ctx context.Context, debateID string, force bool) (*Analysis, error) {
	if !force {
		if cached, err := a.cached(ctx, debateID); err == nil {
			return cached, nil
		}
	}

	key := debateID
	if force {
		key = debateID + ":force"
	}
	v, err, _ := a.group.Do(key, func() (any, error) {
		return a.compute(ctx, debateID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Analysis), nil
}

func (a *Analyzer) cached(ctx context.Context, debateID string) (*Analysis, error) {
	raw, err := a.store.GetJudgeAnalysis(ctx, debateID)
	if err != nil {
		return nil, err
	}
	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &analysis, nil
}

func (a *Analyzer) compute(ctx context.Context, debateID string) (*Analysis, error) {
	session, err := a.store.GetSession(ctx, debateID)
	if err != nil {
		return nil, err
	}
	if session.Status != debate.SessionCompleted {
		return nil, &domain.ConflictError{Message: "debate is not completed; judging would reveal the hidden assignment"}
	}
	state, err := a.store.GetEngineState(ctx, debateID)
	if err != nil {
		return nil, err
	}

	moderator, err := a.registry.Moderator()
	if err != nil {
		return nil, err
	}

	params := llm.GenerateParams{
		System:      judgeSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: buildJudgePrompt(session, state)}},
		MaxTokens:   2000,
		Temperature: 0.3,
	}
	result, err := llm.Retry(ctx, a.retry, moderator.Type(), func() (*llm.Result, error) {
		return moderator.Generate(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("judge generation: %w", err)
	}

	analysis := parseAnalysis(result.Content)
	analysis.DebateID = debateID
	analysis.Topic = session.Topic
	analysis.Format = session.Format
	analysis.For.Model = string(session.Assignment.ForPosition)
	analysis.Against.Model = string(session.Assignment.AgainstPosition)
	analysis.Disclaimer = disclaimer
	analysis.GeneratedAt = time.Now().UTC()

	raw, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	if err := a.store.PutJudgeAnalysis(ctx, debateID, raw, store.SessionTTL(session)); err != nil {
		a.logger.Warn("judge cache write failed", "debate_id", debateID, "error", err)
	}
	return analysis, nil
}

const judgeSystemPrompt = `You are an impartial debate judge. You evaluate rhetorical performance only, never the truth of either position. You respond with a single JSON object and nothing else: no prose, no markdown fences.`

func buildJudgePrompt(session *debate.DebateSession, state *debate.EngineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Judge the following %s-format debate on the topic %q.\n", session.Format, session.Topic)
	fmt.Fprintf(&b, "The FOR side was argued by %s; the AGAINST side by %s.\n\n",
		session.Assignment.ForPosition, session.Assignment.AgainstPosition)

	if len(session.CustomRules) > 0 {
		b.WriteString("Custom rules in force:\n")
		for i, r := range session.CustomRules {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r)
		}
		b.WriteString("\n")
	}

	b.WriteString("Transcript:\n")
	for _, turn := range state.CompletedTurns {
		fmt.Fprintf(&b, "[%s | %s]\n%s\n\n", strings.ToUpper(string(turn.Speaker)), turn.Config.Type, turn.Content)
	}
	for _, turn := range state.Interventions {
		fmt.Fprintf(&b, "[MODERATOR INTERVENTION]\n%s\n\n", turn.Content)
	}

	b.WriteString("Score each side on this rubric:\n")
	for _, c := range rubric {
		fmt.Fprintf(&b, "- %s (%s): 0 to %.0f points\n", c.Label, c.Key, c.MaxScore)
	}
	b.WriteString(`
Respond with exactly this JSON shape:
{
  "for": {"scores": {"<category_key>": {"score": 0, "comment": ""}}, "total": 0, "strengths": [], "weaknesses": []},
  "against": {"scores": {"<category_key>": {"score": 0, "comment": ""}}, "total": 0, "strengths": [], "weaknesses": []},
  "winner": "for" | "against" | "tie",
  "clash_points": [],
  "turning_moments": []
}`)
	return b.String()
}
