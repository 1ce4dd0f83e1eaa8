package engine

import (
	"fmt"
	"time"

	"rostra/internal/domain"
	"rostra/internal/domain/debate"
)

// Sequencer is the finite-state machine over one debate's turn schedule.
// It wraps an EngineState snapshot; callers serialize mutations (the
// orchestrator holds the per-debate lock) and persist the state after each
// transition.
type Sequencer struct {
	state *debate.EngineState
}

// NewSequencer creates a fresh machine in the initialized state.
func NewSequencer(sessionID string, sequence []debate.TurnConfig) *Sequencer {
	return &Sequencer{state: &debate.EngineState{
		SessionID:      sessionID,
		TurnSequence:   sequence,
		CompletedTurns: []debate.Turn{},
		Status:         debate.EngineInitialized,
	}}
}

// Restore rebuilds the machine from a persisted snapshot.
func Restore(state *debate.EngineState) *Sequencer {
	return &Sequencer{state: state}
}

// State returns the underlying snapshot for persistence.
func (s *Sequencer) State() *debate.EngineState {
	return s.state
}

// Status returns the machine's current lifecycle state.
func (s *Sequencer) Status() debate.EngineStatus {
	return s.state.Status
}

// CurrentTurn returns the config of the next turn to execute.
func (s *Sequencer) CurrentTurn() (*debate.TurnConfig, error) {
	if s.state.CurrentTurnIndex >= len(s.state.TurnSequence) {
		return nil, domain.ErrNoCurrentTurn
	}
	cfg := s.state.TurnSequence[s.state.CurrentTurnIndex]
	return &cfg, nil
}

// NextTurn previews the turn after the current one, or nil at the end.
func (s *Sequencer) NextTurn() *debate.TurnConfig {
	i := s.state.CurrentTurnIndex + 1
	if i >= len(s.state.TurnSequence) {
		return nil
	}
	cfg := s.state.TurnSequence[i]
	return &cfg
}

// Start moves initialized -> in_progress.
func (s *Sequencer) Start() error {
	if s.state.Status != debate.EngineInitialized {
		return fmt.Errorf("%w: start from %s", domain.ErrIllegalTransition, s.state.Status)
	}
	now := time.Now().UTC()
	s.state.Status = debate.EngineInProgress
	s.state.StartedAt = &now
	return nil
}

// RecordTurn appends a completed turn and advances the index. The turn's
// speaker must match the current config's; token-count violations against
// the config's bounds attach as warnings, never blockers. Reaching the end
// of the sequence transitions to completed.
func (s *Sequencer) RecordTurn(turn debate.Turn) error {
	if s.state.Status != debate.EngineInProgress {
		return fmt.Errorf("%w: record_turn in %s", domain.ErrIllegalTransition, s.state.Status)
	}
	cfg, err := s.CurrentTurn()
	if err != nil {
		return err
	}
	if turn.Speaker != cfg.Speaker {
		return fmt.Errorf("%w: got %s, schedule expects %s at index %d",
			domain.ErrSpeakerMismatch, turn.Speaker, cfg.Speaker, cfg.Index)
	}

	turn.Config = *cfg
	if cfg.MaxTokens > 0 && turn.TokenCount > cfg.MaxTokens {
		turn.Violations = append(turn.Violations, debate.Violation{
			Rule:        "max_tokens",
			Severity:    debate.ViolationLow,
			Description: fmt.Sprintf("turn used %d tokens, budget was %d", turn.TokenCount, cfg.MaxTokens),
		})
	}
	if cfg.MinTokens > 0 && turn.TokenCount < cfg.MinTokens {
		turn.Violations = append(turn.Violations, debate.Violation{
			Rule:        "min_tokens",
			Severity:    debate.ViolationLow,
			Description: fmt.Sprintf("turn used %d tokens, minimum was %d", turn.TokenCount, cfg.MinTokens),
		})
	}

	s.state.CompletedTurns = append(s.state.CompletedTurns, turn)
	s.state.CurrentTurnIndex++

	if s.state.CurrentTurnIndex == len(s.state.TurnSequence) {
		now := time.Now().UTC()
		s.state.Status = debate.EngineCompleted
		s.state.CompletedAt = &now
	}
	return nil
}

// InsertIntervention injects a moderator intervention between completed
// turns without advancing the index. Legal only while in progress.
func (s *Sequencer) InsertIntervention(turn debate.Turn) error {
	if s.state.Status != debate.EngineInProgress {
		return fmt.Errorf("%w: insert_intervention in %s", domain.ErrIllegalTransition, s.state.Status)
	}
	turn.Config = debate.TurnConfig{
		Index:     s.state.CurrentTurnIndex,
		Type:      debate.TurnModeratorIntervention,
		Speaker:   debate.SpeakerModerator,
		MaxTokens: interventionMaxTokens,
		Label:     "Moderator Intervention",
	}
	turn.Speaker = debate.SpeakerModerator
	s.state.Interventions = append(s.state.Interventions, turn)
	return nil
}

// Pause moves in_progress -> paused.
func (s *Sequencer) Pause() error {
	if s.state.Status != debate.EngineInProgress {
		return fmt.Errorf("%w: pause from %s", domain.ErrIllegalTransition, s.state.Status)
	}
	s.state.Status = debate.EnginePaused
	return nil
}

// Resume moves paused -> in_progress.
func (s *Sequencer) Resume() error {
	if s.state.Status != debate.EnginePaused {
		return fmt.Errorf("%w: resume from %s", domain.ErrIllegalTransition, s.state.Status)
	}
	s.state.Status = debate.EngineInProgress
	return nil
}

// Cancel terminates the debate from any non-terminal state, recording the
// reason.
func (s *Sequencer) Cancel(reason string) error {
	if s.state.Status.Terminal() {
		return fmt.Errorf("%w: cancel from %s", domain.ErrIllegalTransition, s.state.Status)
	}
	now := time.Now().UTC()
	s.state.Status = debate.EngineCancelled
	s.state.CancelReason = reason
	s.state.CompletedAt = &now
	return nil
}

// SetError terminates the debate with an error message from any
// non-terminal state.
func (s *Sequencer) SetError(message string) error {
	if s.state.Status.Terminal() {
		return fmt.Errorf("%w: set_error from %s", domain.ErrIllegalTransition, s.state.Status)
	}
	now := time.Now().UTC()
	s.state.Status = debate.EngineError
	s.state.Error = message
	s.state.CompletedAt = &now
	return nil
}

// Progress reports completed and total scheduled turns.
func (s *Sequencer) Progress() (completed, total int) {
	return len(s.state.CompletedTurns), len(s.state.TurnSequence)
}
