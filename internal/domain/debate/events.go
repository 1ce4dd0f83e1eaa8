package debate

import "time"

// EventType names a bus payload kind. Wire strings are stable; subscribers
// key on them as the SSE "event:" line.
type EventType string

const (
	EventDebateStarted     EventType = "debate_started"
	EventTurnStarted       EventType = "turn_started"
	EventTurnStreaming     EventType = "turn_streaming"
	EventTurnCompleted     EventType = "turn_completed"
	EventTurnError         EventType = "turn_error"
	EventViolationDetected EventType = "violation_detected"
	EventIntervention      EventType = "intervention"
	EventProgressUpdate    EventType = "progress_update"
	EventBudgetWarning     EventType = "budget_warning"
	EventBudgetExceeded    EventType = "budget_exceeded"
	EventDebatePaused      EventType = "debate_paused"
	EventDebateResumed     EventType = "debate_resumed"
	EventDebateCompleted   EventType = "debate_completed"
	EventDebateCancelled   EventType = "debate_cancelled"
	EventDebateError       EventType = "debate_error"
	EventHeartbeat         EventType = "heartbeat"
)

// Event is the bus payload. Every event carries its type, an ISO timestamp
// and the debate id; type-specific fields ride in Data.
type Event struct {
	Type EventType `json:"type"`
	// Seq orders events within one debate. The bus assigns it on publish;
	// it is zero before that. Unlike the timestamp it is never ambiguous,
	// so reconnecting subscribers dedup on it.
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	DebateID  string         `json:"debate_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, debateID string, data map[string]any) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		DebateID:  debateID,
		Data:      data,
	}
}

// Typed constructors for the payload shapes the orchestrator emits. Keeping
// them here pins the wire field names in one place.

func NewDebateStartedEvent(debateID, topic string, totalTurns int) Event {
	return NewEvent(EventDebateStarted, debateID, map[string]any{
		"topic":       topic,
		"total_turns": totalTurns,
	})
}

func NewTurnStartedEvent(debateID string, cfg TurnConfig, provider string) Event {
	return NewEvent(EventTurnStarted, debateID, map[string]any{
		"turn_number":   cfg.Index,
		"turn_type":     cfg.Type,
		"speaker":       cfg.Speaker,
		"speaker_label": cfg.Label,
		"provider":      provider,
	})
}

func NewTurnStreamingEvent(debateID string, turnIndex int, delta string, accumulated int) Event {
	return NewEvent(EventTurnStreaming, debateID, map[string]any{
		"turn_number": turnIndex,
		"delta":       delta,
		"accumulated": accumulated,
	})
}

func NewTurnCompletedEvent(debateID string, turn *Turn, latency time.Duration) Event {
	return NewEvent(EventTurnCompleted, debateID, map[string]any{
		"turn_number": turn.Config.Index,
		"turn_id":     turn.ID,
		"turn_type":   turn.Config.Type,
		"speaker":     turn.Speaker,
		"tokens":      turn.TokenCount,
		"latency_ms":  latency.Milliseconds(),
	})
}

func NewTurnErrorEvent(debateID string, turnIndex int, msg string, recoverable bool) Event {
	return NewEvent(EventTurnError, debateID, map[string]any{
		"turn_number": turnIndex,
		"error":       msg,
		"recoverable": recoverable,
	})
}

func NewViolationDetectedEvent(debateID string, turnIndex int, v Violation) Event {
	return NewEvent(EventViolationDetected, debateID, map[string]any{
		"turn_number": turnIndex,
		"rule":        v.Rule,
		"severity":    v.Severity,
		"description": v.Description,
	})
}

func NewInterventionEvent(debateID string, turnIndex int, content string) Event {
	return NewEvent(EventIntervention, debateID, map[string]any{
		"after_turn": turnIndex,
		"content":    content,
	})
}

func NewProgressUpdateEvent(debateID string, completed, total int) Event {
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	return NewEvent(EventProgressUpdate, debateID, map[string]any{
		"completed_turns": completed,
		"total_turns":     total,
		"percent":         pct,
	})
}

func NewBudgetWarningEvent(debateID string, utilizationPct float64, remaining int, level string) Event {
	return NewEvent(EventBudgetWarning, debateID, map[string]any{
		"utilization_pct":  utilizationPct,
		"remaining_tokens": remaining,
		"level":            level,
	})
}

func NewBudgetExceededEvent(debateID, reason string) Event {
	return NewEvent(EventBudgetExceeded, debateID, map[string]any{
		"reason": reason,
	})
}

func NewDebatePausedEvent(debateID string) Event {
	return NewEvent(EventDebatePaused, debateID, nil)
}

func NewDebateResumedEvent(debateID string) Event {
	return NewEvent(EventDebateResumed, debateID, nil)
}

func NewDebateCompletedEvent(debateID string, totalTurns, totalTokens int, costUSD float64) Event {
	return NewEvent(EventDebateCompleted, debateID, map[string]any{
		"total_turns":  totalTurns,
		"total_tokens": totalTokens,
		"cost_usd":     costUSD,
	})
}

func NewDebateCancelledEvent(debateID, reason string, completedTurns int) Event {
	return NewEvent(EventDebateCancelled, debateID, map[string]any{
		"reason":          reason,
		"completed_turns": completedTurns,
	})
}

func NewDebateErrorEvent(debateID, msg string) Event {
	return NewEvent(EventDebateError, debateID, map[string]any{
		"error": msg,
	})
}

func NewHeartbeatEvent(debateID string) Event {
	return NewEvent(EventHeartbeat, debateID, nil)
}
