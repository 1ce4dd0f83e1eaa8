package engine

import (
	"errors"
	"testing"

	"rostra/internal/domain"
	"rostra/internal/domain/debate"
)

func newTestSequencer(t *testing.T, n int) *Sequencer {
	t.Helper()
	sequence, err := GenerateSchedule(debate.FormatStandard, n, 0)
	if err != nil {
		t.Fatalf("GenerateSchedule error = %v", err)
	}
	return NewSequencer("deb_test", sequence)
}

func turnFor(cfg *debate.TurnConfig) debate.Turn {
	return debate.Turn{
		Speaker:    cfg.Speaker,
		Config:     *cfg,
		Content:    "content",
		TokenCount: 200,
	}
}

func TestSequencerLifecycle(t *testing.T) {
	s := newTestSequencer(t, 2)
	if s.Status() != debate.EngineInitialized {
		t.Fatalf("fresh sequencer status = %s", s.Status())
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	if s.State().StartedAt == nil {
		t.Error("Start did not stamp StartedAt")
	}
	if err := s.Start(); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("second Start error = %v, want ErrIllegalTransition", err)
	}

	for {
		cfg, err := s.CurrentTurn()
		if err != nil {
			break
		}
		if err := s.RecordTurn(turnFor(cfg)); err != nil {
			t.Fatalf("RecordTurn(index %d) error = %v", cfg.Index, err)
		}
		if s.Status() == debate.EngineCompleted {
			break
		}
	}

	if s.Status() != debate.EngineCompleted {
		t.Fatalf("status after full run = %s, want completed", s.Status())
	}
	if s.State().CompletedAt == nil {
		t.Error("completion did not stamp CompletedAt")
	}
	completed, total := s.Progress()
	if completed != total || total != 5 {
		t.Errorf("Progress() = (%d, %d), want (5, 5)", completed, total)
	}

	cfg, err := s.CurrentTurn()
	if !errors.Is(err, domain.ErrNoCurrentTurn) || cfg != nil {
		t.Errorf("CurrentTurn after completion = (%v, %v)", cfg, err)
	}
}

func TestSequencerSpeakerMismatch(t *testing.T) {
	s := newTestSequencer(t, 2)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	turn := debate.Turn{Speaker: debate.SpeakerFor, Config: debate.TurnConfig{Type: debate.TurnOpening}, TokenCount: 200}
	if err := s.RecordTurn(turn); !errors.Is(err, domain.ErrSpeakerMismatch) {
		t.Errorf("RecordTurn with wrong speaker error = %v, want ErrSpeakerMismatch", err)
	}
	if got, _ := s.Progress(); got != 0 {
		t.Errorf("mismatched turn was recorded: completed = %d", got)
	}
}

func TestSequencerTokenBoundWarnings(t *testing.T) {
	s := newTestSequencer(t, 2)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	cfg, err := s.CurrentTurn()
	if err != nil {
		t.Fatal(err)
	}
	over := turnFor(cfg)
	over.TokenCount = cfg.MaxTokens + 50
	if err := s.RecordTurn(over); err != nil {
		t.Fatalf("RecordTurn over budget error = %v, want warning not error", err)
	}
	recorded := s.State().CompletedTurns[0]
	if len(recorded.Violations) != 1 || recorded.Violations[0].Rule != "max_tokens" {
		t.Errorf("over-budget turn violations = %+v, want one max_tokens warning", recorded.Violations)
	}
	if recorded.Violations[0].Severity != debate.ViolationLow {
		t.Errorf("budget violation severity = %s, want low", recorded.Violations[0].Severity)
	}
}

func TestSequencerPauseResume(t *testing.T) {
	s := newTestSequencer(t, 2)
	if err := s.Pause(); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("Pause before Start error = %v, want ErrIllegalTransition", err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause error = %v", err)
	}
	cfg, err := s.CurrentTurn()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordTurn(turnFor(cfg)); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("RecordTurn while paused error = %v, want ErrIllegalTransition", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume error = %v", err)
	}
	if err := s.Resume(); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("Resume while running error = %v, want ErrIllegalTransition", err)
	}
	if err := s.RecordTurn(turnFor(cfg)); err != nil {
		t.Errorf("RecordTurn after resume error = %v", err)
	}
}

func TestSequencerCancel(t *testing.T) {
	s := newTestSequencer(t, 2)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Cancel("budget exhausted"); err != nil {
		t.Fatalf("Cancel error = %v", err)
	}
	if s.Status() != debate.EngineCancelled {
		t.Errorf("status after cancel = %s", s.Status())
	}
	if s.State().CancelReason != "budget exhausted" {
		t.Errorf("cancel reason = %q", s.State().CancelReason)
	}
	if err := s.Cancel("again"); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("Cancel from terminal error = %v, want ErrIllegalTransition", err)
	}
	if err := s.SetError("boom"); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("SetError from terminal error = %v, want ErrIllegalTransition", err)
	}
}

func TestSequencerSetError(t *testing.T) {
	s := newTestSequencer(t, 2)
	if err := s.SetError("provider unreachable"); err != nil {
		t.Fatalf("SetError error = %v", err)
	}
	if s.Status() != debate.EngineError {
		t.Errorf("status = %s, want error", s.Status())
	}
	if s.State().Error != "provider unreachable" {
		t.Errorf("error message = %q", s.State().Error)
	}
}

func TestSequencerInsertIntervention(t *testing.T) {
	s := newTestSequencer(t, 2)
	iv := debate.Turn{Content: "please keep it civil", TokenCount: 40}
	if err := s.InsertIntervention(iv); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("InsertIntervention before start error = %v, want ErrIllegalTransition", err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	before := s.State().CurrentTurnIndex
	if err := s.InsertIntervention(iv); err != nil {
		t.Fatalf("InsertIntervention error = %v", err)
	}
	if s.State().CurrentTurnIndex != before {
		t.Error("intervention advanced the turn index")
	}
	if len(s.State().Interventions) != 1 {
		t.Fatalf("interventions recorded = %d", len(s.State().Interventions))
	}
	got := s.State().Interventions[0]
	if got.Speaker != debate.SpeakerModerator || got.Config.Type != debate.TurnModeratorIntervention {
		t.Errorf("intervention stored as %s/%s", got.Speaker, got.Config.Type)
	}
}

func TestSequencerRestoreRoundTrip(t *testing.T) {
	s := newTestSequencer(t, 4)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	cfg, err := s.CurrentTurn()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordTurn(turnFor(cfg)); err != nil {
		t.Fatal(err)
	}

	raw, err := s.State().Marshal()
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	state, err := debate.UnmarshalEngineState(raw)
	if err != nil {
		t.Fatalf("UnmarshalEngineState error = %v", err)
	}
	restored := Restore(state)

	if restored.Status() != debate.EngineInProgress {
		t.Errorf("restored status = %s", restored.Status())
	}
	completed, total := restored.Progress()
	if completed != 1 || total != 7 {
		t.Errorf("restored Progress() = (%d, %d), want (1, 7)", completed, total)
	}
	next, err := restored.CurrentTurn()
	if err != nil {
		t.Fatal(err)
	}
	if next.Index != 1 {
		t.Errorf("restored current turn index = %d, want 1", next.Index)
	}
	if err := restored.RecordTurn(turnFor(next)); err != nil {
		t.Errorf("RecordTurn on restored machine error = %v", err)
	}
}
