package judge

import (
	"testing"
)

const wellFormedReport = `{
  "for": {
    "scores": {
      "argument_quality": {"score": 20, "comment": "coherent case"},
      "evidence_use": {"score": 15, "comment": "two studies cited"},
      "rebuttal_effectiveness": {"score": 14, "comment": "addressed main points"},
      "clarity": {"score": 16, "comment": "clean structure"},
      "rule_adherence": {"score": 13, "comment": "no violations"}
    },
    "total": 78,
    "strengths": ["strong framing"],
    "weaknesses": ["thin on data"]
  },
  "against": {
    "scores": {
      "argument_quality": {"score": 18, "comment": "solid"},
      "evidence_use": {"score": 12, "comment": "anecdotal"},
      "rebuttal_effectiveness": {"score": 15, "comment": "sharp"},
      "clarity": {"score": 14, "comment": "wordy"},
      "rule_adherence": {"score": 12, "comment": "one warning"}
    },
    "total": 71,
    "strengths": ["good rebuttals"],
    "weaknesses": ["weak close"]
  },
  "winner": "for",
  "clash_points": ["cost versus benefit"],
  "turning_moments": ["the second rebuttal"]
}`

func TestParseWellFormed(t *testing.T) {
	a := parseAnalysis(wellFormedReport)
	if a.Winner != "for" {
		t.Errorf("winner = %q", a.Winner)
	}
	if a.For.Total != 78 || a.Against.Total != 71 {
		t.Errorf("totals = (%.0f, %.0f), want (78, 71)", a.For.Total, a.Against.Total)
	}
	if s := a.For.Scores["evidence_use"]; s.Score != 15 || s.MaxScore != 20 || s.Comment != "two studies cited" {
		t.Errorf("for evidence_use = %+v", s)
	}
	if len(a.ClashPoints) != 1 || a.ClashPoints[0] != "cost versus benefit" {
		t.Errorf("clash points = %v", a.ClashPoints)
	}
	if len(a.For.Strengths) != 1 || len(a.Against.Weaknesses) != 1 {
		t.Errorf("strengths/weaknesses lost: %+v / %+v", a.For.Strengths, a.Against.Weaknesses)
	}
}

func TestParseFencedOutput(t *testing.T) {
	a := parseAnalysis("```json\n" + wellFormedReport + "\n```")
	if a.Winner != "for" || a.For.Total != 78 {
		t.Errorf("fenced report parsed as winner=%q total=%.0f", a.Winner, a.For.Total)
	}
}

func TestParseProseWrappedOutput(t *testing.T) {
	raw := "Here is my evaluation of the debate:\n\n" + wellFormedReport + "\n\nLet me know if you need more detail."
	a := parseAnalysis(raw)
	if a.Winner != "for" || a.Against.Total != 71 {
		t.Errorf("prose-wrapped report parsed as winner=%q total=%.0f", a.Winner, a.Against.Total)
	}
}

func TestParseClampsScores(t *testing.T) {
	raw := `{
  "for": {"scores": {"argument_quality": {"score": 99}, "clarity": {"score": -5}}},
  "against": {"scores": {"argument_quality": {"score": 10}}},
  "winner": "FOR"
}`
	a := parseAnalysis(raw)
	if got := a.For.Scores["argument_quality"].Score; got != 25 {
		t.Errorf("over-max score clamped to %.0f, want 25", got)
	}
	if got := a.For.Scores["clarity"].Score; got != 0 {
		t.Errorf("negative score clamped to %.0f, want 0", got)
	}
	if a.For.Total != 25 {
		t.Errorf("total recomputed as %.0f, want 25", a.For.Total)
	}
	if a.Winner != "for" {
		t.Errorf("winner %q not normalized", a.Winner)
	}
}

func TestParseMissingFieldsZeroed(t *testing.T) {
	a := parseAnalysis(`{"winner": "against"}`)
	if a.Winner != "against" {
		t.Errorf("winner = %q", a.Winner)
	}
	if len(a.For.Scores) != len(rubric) {
		t.Errorf("for side has %d score slots, want %d", len(a.For.Scores), len(rubric))
	}
	for key, s := range a.For.Scores {
		if s.Score != 0 {
			t.Errorf("missing category %s scored %.0f", key, s.Score)
		}
		if s.MaxScore == 0 {
			t.Errorf("category %s has no max score", key)
		}
	}
	if a.For.Total != 0 || a.ClashPoints == nil || a.TurningMoments == nil {
		t.Errorf("zeroed analysis malformed: %+v", a)
	}
}

func TestParseGarbage(t *testing.T) {
	for _, raw := range []string{"", "the debate was great", "{not json at all"} {
		a := parseAnalysis(raw)
		if a == nil {
			t.Fatalf("parseAnalysis(%q) returned nil", raw)
		}
		if a.Winner != "tie" {
			t.Errorf("parseAnalysis(%q) winner = %q, want tie fallback", raw, a.Winner)
		}
	}
}

func TestParseSalvagesPartialJSON(t *testing.T) {
	// Trailing comma defeats encoding/json; the salvage path still extracts
	// what it can.
	raw := `{"winner": "against", "for": {"scores": {"clarity": {"score": 12,},}},}`
	a := parseAnalysis(raw)
	if a.Winner != "against" {
		t.Errorf("salvaged winner = %q", a.Winner)
	}
	if got := a.For.Scores["clarity"].Score; got != 12 {
		t.Errorf("salvaged clarity score = %.0f, want 12", got)
	}
}

func TestNormalizeWinner(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"for", "for"},
		{" FOR ", "for"},
		{"Against", "against"},
		{"tie", "tie"},
		{"draw", "tie"},
		{"", "tie"},
	}
	for _, tt := range tests {
		if got := normalizeWinner(tt.in); got != tt.want {
			t.Errorf("normalizeWinner(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractObjectIgnoresBracesInStrings(t *testing.T) {
	raw := `noise {"comment": "uses { and } inside", "winner": "for"} trailing`
	got := extractObject(raw)
	if got != `{"comment": "uses { and } inside", "winner": "for"}` {
		t.Errorf("extractObject = %q", got)
	}
}
