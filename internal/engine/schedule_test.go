package engine

import (
	"testing"

	"rostra/internal/domain/debate"
)

func TestGenerateScheduleShape(t *testing.T) {
	for _, n := range []int{2, 4, 6, 8, 10} {
		sequence, err := GenerateSchedule(debate.FormatStandard, n, 0)
		if err != nil {
			t.Fatalf("GenerateSchedule(standard, %d) error = %v", n, err)
		}

		// intro + n debater turns + (n-1) transitions + summary
		if want := 2*n + 1; len(sequence) != want {
			t.Errorf("n=%d: schedule length = %d, want %d", n, len(sequence), want)
		}
		if sequence[0].Type != debate.TurnModeratorIntro {
			t.Errorf("n=%d: schedule does not open with moderator intro", n)
		}
		if last := sequence[len(sequence)-1]; last.Type != debate.TurnModeratorSummary {
			t.Errorf("n=%d: schedule does not close with moderator summary", n)
		}
		for i, cfg := range sequence {
			if cfg.Index != i {
				t.Errorf("n=%d: config at position %d has index %d", n, i, cfg.Index)
			}
		}

		debaters := DebaterTurns(sequence)
		if len(debaters) != n {
			t.Fatalf("n=%d: got %d debater turns", n, len(debaters))
		}
		for i, cfg := range debaters {
			want := debate.SpeakerFor
			if i%2 == 1 {
				want = debate.SpeakerAgainst
			}
			if cfg.Speaker != want {
				t.Errorf("n=%d: debater turn %d spoken by %s, want %s", n, i, cfg.Speaker, want)
			}
		}

		// a moderator transition precedes every debater turn after the first
		seenDebaters := 0
		for i, cfg := range sequence {
			if cfg.Speaker == debate.SpeakerModerator {
				continue
			}
			seenDebaters++
			if seenDebaters > 1 && sequence[i-1].Type != debate.TurnModeratorTransition {
				t.Errorf("n=%d: debater turn at index %d not preceded by a transition", n, i)
			}
		}
	}
}

func TestGenerateScheduleOxfordCrossExamination(t *testing.T) {
	sequence, err := GenerateSchedule(debate.FormatOxford, 8, 0)
	if err != nil {
		t.Fatalf("GenerateSchedule(oxford, 8) error = %v", err)
	}
	debaters := DebaterTurns(sequence)
	if len(debaters) != 8 {
		t.Fatalf("oxford schedule changed the debater turn count: %d", len(debaters))
	}

	var types []debate.TurnType
	for _, cfg := range debaters {
		types = append(types, cfg.Type)
	}
	want := []debate.TurnType{
		debate.TurnOpening, debate.TurnOpening,
		debate.TurnConstructive, debate.TurnConstructive,
		debate.TurnCrossExamination, debate.TurnCrossExamination,
		debate.TurnClosing, debate.TurnClosing,
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("oxford debater turn %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestGenerateScheduleOxfordSmallCountsUnchanged(t *testing.T) {
	sequence, err := GenerateSchedule(debate.FormatOxford, 6, 0)
	if err != nil {
		t.Fatalf("GenerateSchedule(oxford, 6) error = %v", err)
	}
	for _, cfg := range sequence {
		if cfg.Type == debate.TurnCrossExamination {
			t.Error("oxford with 6 turns should not schedule cross-examination")
		}
	}
}

func TestGenerateScheduleRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		format debate.Format
		turns  int
	}{
		{"odd count", debate.FormatStandard, 3},
		{"zero", debate.FormatStandard, 0},
		{"too many", debate.FormatStandard, 12},
		{"unknown format", "freestyle", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := GenerateSchedule(tt.format, tt.turns, 0); err == nil {
				t.Errorf("GenerateSchedule(%s, %d) accepted bad input", tt.format, tt.turns)
			}
		})
	}
}

func TestGenerateScheduleTokenBudgets(t *testing.T) {
	sequence, err := GenerateSchedule(debate.FormatStandard, 4, 600)
	if err != nil {
		t.Fatalf("GenerateSchedule error = %v", err)
	}
	for _, cfg := range sequence {
		if cfg.Speaker == debate.SpeakerModerator {
			if cfg.MaxTokens <= 0 {
				t.Errorf("moderator turn %d has no token budget", cfg.Index)
			}
			continue
		}
		if cfg.MaxTokens != 600 {
			t.Errorf("debater turn %d budget = %d, want 600", cfg.Index, cfg.MaxTokens)
		}
		if cfg.MinTokens != 100 {
			t.Errorf("debater turn %d min = %d, want 100", cfg.Index, cfg.MinTokens)
		}
	}
}
