package prompt

import (
	"strings"
	"testing"
	"time"

	"rostra/internal/domain/debate"
)

func testInput() Input {
	return Input{
		Session: &debate.DebateSession{
			ID:        "deb_prompt",
			Topic:     "Should homework be abolished in primary schools?",
			TurnCount: 4,
			Format:    debate.FormatStandard,
			Assignment: debate.HiddenAssignment{
				ForPosition:     debate.ModelChatGPT,
				AgainstPosition: debate.ModelGrok,
			},
		},
	}
}

func completedTurn(t debate.TurnType, speaker debate.Speaker, content string, at time.Time) debate.Turn {
	return debate.Turn{
		Config:    debate.TurnConfig{Type: t, Speaker: speaker},
		Speaker:   speaker,
		Content:   content,
		StartedAt: at,
	}
}

func TestCompileUnknownTurnType(t *testing.T) {
	in := testInput()
	in.Current = debate.TurnConfig{Type: "interpretive_dance"}
	if _, err := Compile(in); err == nil {
		t.Error("Compile accepted an unknown turn type")
	}
}

func TestModeratorIntro(t *testing.T) {
	in := testInput()
	in.Session.CustomRules = []string{"no appeals to authority"}
	in.Current = debate.TurnConfig{Type: debate.TurnModeratorIntro, Speaker: debate.SpeakerModerator, MaxTokens: 400}

	got, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	if got.Temperature != 0.7 || got.MaxTokens != 400 {
		t.Errorf("params = (%.1f, %d)", got.Temperature, got.MaxTokens)
	}
	if !strings.Contains(got.SystemPrompt, "neutral moderator") {
		t.Error("intro does not use the moderator system prompt")
	}
	if !strings.Contains(got.UserPrompt, in.Session.Topic) {
		t.Error("intro prompt omits the topic")
	}
	if !strings.Contains(got.UserPrompt, "no appeals to authority") {
		t.Error("intro prompt omits the custom rules")
	}
	if !strings.Contains(got.UserPrompt, "FOR side") {
		t.Error("intro prompt does not hand off to the FOR side")
	}
}

func TestModeratorTransition(t *testing.T) {
	in := testInput()
	in.Current = debate.TurnConfig{Type: debate.TurnModeratorTransition, Speaker: debate.SpeakerModerator, MaxTokens: 150}
	in.Completed = []debate.Turn{
		completedTurn(debate.TurnOpening, debate.SpeakerFor, "homework crowds out play", time.Now()),
	}
	in.Next = &debate.TurnConfig{Type: debate.TurnOpening, Speaker: debate.SpeakerAgainst}

	got, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	if got.Temperature != 0.5 {
		t.Errorf("transition temperature = %.1f", got.Temperature)
	}
	if !strings.Contains(got.UserPrompt, "FOR side has just finished") {
		t.Errorf("transition omits the previous speaker: %q", got.UserPrompt)
	}
	if !strings.Contains(got.UserPrompt, "AGAINST side for its opening statement") {
		t.Errorf("transition omits the next speaker: %q", got.UserPrompt)
	}
	if !strings.Contains(got.UserPrompt, "under 50 words") {
		t.Error("transition has no length cap")
	}
	// Transitions never carry the transcript.
	if strings.Contains(got.UserPrompt, "homework crowds out play") {
		t.Error("transition leaked turn content")
	}
}

func TestModeratorIntervention(t *testing.T) {
	in := testInput()
	in.Current = debate.TurnConfig{Type: debate.TurnModeratorIntervention, Speaker: debate.SpeakerModerator, MaxTokens: 120}
	in.Violation = &debate.Violation{
		Rule:        "bad_faith_pressure",
		Severity:    debate.ViolationMedium,
		Description: "demanded concession",
	}

	got, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	if got.Temperature != 0.4 {
		t.Errorf("intervention temperature = %.1f", got.Temperature)
	}
	for _, want := range []string{"bad_faith_pressure", "medium", "demanded concession", "neutral"} {
		if !strings.Contains(got.UserPrompt, want) {
			t.Errorf("intervention prompt missing %q", want)
		}
	}
}

func TestModeratorSummaryStaysNeutral(t *testing.T) {
	in := testInput()
	in.Current = debate.TurnConfig{Type: debate.TurnModeratorSummary, Speaker: debate.SpeakerModerator, MaxTokens: 500}
	in.Completed = []debate.Turn{
		completedTurn(debate.TurnModeratorIntro, debate.SpeakerModerator, "welcome", time.Now()),
		completedTurn(debate.TurnOpening, debate.SpeakerFor, "for argument", time.Now().Add(time.Second)),
		completedTurn(debate.TurnOpening, debate.SpeakerAgainst, "against argument", time.Now().Add(2*time.Second)),
	}

	got, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	if !strings.Contains(got.UserPrompt, "for argument") || !strings.Contains(got.UserPrompt, "against argument") {
		t.Error("summary transcript missing debater turns")
	}
	if strings.Contains(got.UserPrompt, "welcome") {
		t.Error("summary transcript includes moderator turns")
	}
	if !strings.Contains(got.UserPrompt, "hint at a winner") {
		t.Error("summary prompt does not forbid picking a winner")
	}
}

func TestDebaterSidePinning(t *testing.T) {
	in := testInput()
	in.Current = debate.TurnConfig{
		Type: debate.TurnOpening, Speaker: debate.SpeakerAgainst,
		MaxTokens: 800, Label: "Opening Statement (AGAINST)",
	}

	got, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	if !strings.Contains(got.SystemPrompt, "AGAINST debater") || !strings.Contains(got.SystemPrompt, "argue against") {
		t.Errorf("system prompt does not pin the side: %q", got.SystemPrompt)
	}
	if !strings.Contains(got.SystemPrompt, in.Session.Topic) {
		t.Error("system prompt omits the topic")
	}
	// The model's identity must never reach the prompt.
	lower := strings.ToLower(got.SystemPrompt + got.UserPrompt)
	for _, leak := range []string{"chatgpt", "grok", "openai", "xai"} {
		if strings.Contains(lower, leak) {
			t.Errorf("prompt leaks model identity %q", leak)
		}
	}
	if got.Temperature != 0.7 {
		t.Errorf("opening temperature = %.1f", got.Temperature)
	}
	if !strings.Contains(got.UserPrompt, "roughly 250 words") {
		t.Errorf("opening word target missing: %q", got.UserPrompt)
	}
}

func TestDebaterRebuttalTemperatureAndHistory(t *testing.T) {
	base := time.Now()
	in := testInput()
	in.Current = debate.TurnConfig{Type: debate.TurnRebuttal, Speaker: debate.SpeakerFor, MaxTokens: 800, Label: "Rebuttal (FOR)"}
	in.Completed = []debate.Turn{
		completedTurn(debate.TurnModeratorIntro, debate.SpeakerModerator, "welcome everyone", base),
		completedTurn(debate.TurnOpening, debate.SpeakerFor, "first for point", base.Add(time.Second)),
		completedTurn(debate.TurnModeratorTransition, debate.SpeakerModerator, "over to against", base.Add(2*time.Second)),
		completedTurn(debate.TurnOpening, debate.SpeakerAgainst, "first against point", base.Add(3*time.Second)),
	}
	iv := completedTurn(debate.TurnModeratorIntervention, debate.SpeakerModerator, "keep it civil", base.Add(90*time.Second))
	in.Interventions = []debate.Turn{iv}

	got, err := Compile(in)
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	if got.Temperature != 0.8 {
		t.Errorf("rebuttal temperature = %.1f, want 0.8", got.Temperature)
	}
	if !strings.Contains(got.UserPrompt, "first for point") || !strings.Contains(got.UserPrompt, "first against point") {
		t.Error("history missing debater turns")
	}
	if strings.Contains(got.UserPrompt, "welcome everyone") || strings.Contains(got.UserPrompt, "over to against") {
		t.Error("history includes intro or transition content")
	}
	if !strings.Contains(got.UserPrompt, "keep it civil") {
		t.Error("history omits the moderator intervention")
	}
	// The intervention happened last and must render last.
	if strings.Index(got.UserPrompt, "keep it civil") < strings.Index(got.UserPrompt, "first against point") {
		t.Error("history not in chronological order")
	}
}

func TestStructuralBudgets(t *testing.T) {
	tests := []struct {
		turnType debate.TurnType
		want     string
	}{
		{debate.TurnOpening, "25% introduction, 60% body, 15% conclusion"},
		{debate.TurnClosing, "15% introduction, 55% body, 30% conclusion"},
		{debate.TurnConstructive, "15% introduction, 70% body, 15% conclusion"},
	}
	for _, tt := range tests {
		in := testInput()
		in.Current = debate.TurnConfig{Type: tt.turnType, Speaker: debate.SpeakerFor, MaxTokens: 800}
		got, err := Compile(in)
		if err != nil {
			t.Fatalf("Compile(%s) error = %v", tt.turnType, err)
		}
		if !strings.Contains(got.UserPrompt, tt.want) {
			t.Errorf("%s prompt missing structure %q", tt.turnType, tt.want)
		}
	}
}
