package debate

import "time"

// TurnType classifies a scheduled turn. Wire strings match the values the
// prompt compiler and event payloads use; mapping lives here and nowhere
// else.
type TurnType string

const (
	TurnOpening               TurnType = "opening"
	TurnConstructive          TurnType = "constructive"
	TurnRebuttal              TurnType = "rebuttal"
	TurnCrossExamination      TurnType = "cross_examination"
	TurnClosing               TurnType = "closing"
	TurnModeratorIntro        TurnType = "moderator_intro"
	TurnModeratorTransition   TurnType = "moderator_transition"
	TurnModeratorIntervention TurnType = "moderator_intervention"
	TurnModeratorSummary      TurnType = "moderator_summary"
)

// ModeratorType reports whether t is one of the moderator turn types.
func (t TurnType) ModeratorType() bool {
	switch t {
	case TurnModeratorIntro, TurnModeratorTransition, TurnModeratorIntervention, TurnModeratorSummary:
		return true
	}
	return false
}

// Speaker is the role a turn is addressed to.
type Speaker string

const (
	SpeakerFor       Speaker = "for"
	SpeakerAgainst   Speaker = "against"
	SpeakerModerator Speaker = "moderator"
)

// TurnConfig is the immutable descriptor of one scheduled turn, derived
// deterministically from (format, turn count).
type TurnConfig struct {
	Index       int      `json:"index"`
	Type        TurnType `json:"type"`
	Speaker     Speaker  `json:"speaker"`
	MaxTokens   int      `json:"max_tokens"`
	MinTokens   int      `json:"min_tokens,omitempty"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
}

// ViolationSeverity grades a rule violation.
type ViolationSeverity string

const (
	ViolationLow      ViolationSeverity = "low"
	ViolationMedium   ViolationSeverity = "medium"
	ViolationHigh     ViolationSeverity = "high"
	ViolationCritical ViolationSeverity = "critical"
)

// Violation records a rule breach detected in a completed turn. Violations
// never block recording; they feed moderator interventions.
type Violation struct {
	Rule        string            `json:"rule"`
	Severity    ViolationSeverity `json:"severity"`
	Description string            `json:"description,omitempty"`
}

// Turn is one completed generation in the schedule.
type Turn struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Config      TurnConfig  `json:"config"`
	Speaker     Speaker     `json:"speaker"`
	Provider    string      `json:"provider"`
	Content     string      `json:"content"`
	TokenCount  int         `json:"token_count"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	Violations  []Violation `json:"violations,omitempty"`
}
