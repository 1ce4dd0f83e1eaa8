package debate

import (
	"encoding/json"
	"fmt"
	"time"
)

// EngineStatus is the sequencer's lifecycle state.
type EngineStatus string

const (
	EngineInitialized EngineStatus = "initialized"
	EngineInProgress  EngineStatus = "in_progress"
	EnginePaused      EngineStatus = "paused"
	EngineCompleted   EngineStatus = "completed"
	EngineCancelled   EngineStatus = "cancelled"
	EngineError       EngineStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s EngineStatus) Terminal() bool {
	switch s {
	case EngineCompleted, EngineCancelled, EngineError:
		return true
	}
	return false
}

// EngineState is the orchestrator-owned projection of a running debate.
// Invariant: len(CompletedTurns) == CurrentTurnIndex at every suspension
// point. Interventions are kept separately because they do not advance the
// index.
type EngineState struct {
	SessionID        string       `json:"session_id"`
	CurrentTurnIndex int          `json:"current_turn_index"`
	TurnSequence     []TurnConfig `json:"turn_sequence"`
	CompletedTurns   []Turn       `json:"completed_turns"`
	Interventions    []Turn       `json:"interventions,omitempty"`
	Status           EngineStatus `json:"status"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CancelReason     string       `json:"cancel_reason,omitempty"`
	Error            string       `json:"error,omitempty"`
}

// Marshal serializes the state to its compact, stable crash-recovery form.
// time.Time fields serialize as RFC 3339 strings; everything else survives
// the round trip unchanged.
func (s *EngineState) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal engine state: %w", err)
	}
	return data, nil
}

// UnmarshalEngineState restores a state previously produced by Marshal.
func UnmarshalEngineState(data []byte) (*EngineState, error) {
	var s EngineState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal engine state: %w", err)
	}
	return &s, nil
}
