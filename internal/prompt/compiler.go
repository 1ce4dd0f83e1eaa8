// Package prompt shapes role-specific system and user prompts from the
// sequencer and session state.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"rostra/internal/domain/debate"
)

// Compiled is a ready-to-send prompt pair with its generation parameters.
type Compiled struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Input is the snapshot a compilation works from. All fields are read-only.
type Input struct {
	Session *debate.DebateSession
	// Completed holds the turns recorded so far; Interventions the
	// moderator interjections, which are tracked outside the turn sequence.
	Completed     []debate.Turn
	Interventions []debate.Turn
	Current       debate.TurnConfig
	Next          *debate.TurnConfig
	// Violation drives moderator interventions and is nil otherwise.
	Violation *debate.Violation
}

// Compile builds the prompt for the current turn.
func Compile(in Input) (*Compiled, error) {
	switch in.Current.Type {
	case debate.TurnModeratorIntro:
		return moderatorIntro(in), nil
	case debate.TurnModeratorTransition:
		return moderatorTransition(in), nil
	case debate.TurnModeratorIntervention:
		return moderatorIntervention(in), nil
	case debate.TurnModeratorSummary:
		return moderatorSummary(in), nil
	case debate.TurnOpening, debate.TurnConstructive, debate.TurnRebuttal,
		debate.TurnCrossExamination, debate.TurnClosing:
		return debater(in), nil
	}
	return nil, fmt.Errorf("no prompt shape for turn type %q", in.Current.Type)
}

const moderatorSystem = `You are the neutral moderator of a structured debate. You never take a side, never evaluate arguments, and never hint at which side is stronger. You speak concisely and keep the debate moving.`

func moderatorIntro(in Input) *Compiled {
	s := in.Session
	var b strings.Builder
	fmt.Fprintf(&b, "Open a formal debate on the topic: %q.\n\n", s.Topic)
	fmt.Fprintf(&b, "Format: %s. There will be %d debater turns, alternating between the FOR side and the AGAINST side, beginning with FOR.\n", s.Format, s.TurnCount)
	b.WriteString("Briefly explain the turn structure to the audience.\n")
	if block := customRulesBlock(s.CustomRules); block != "" {
		b.WriteString(block)
	}
	b.WriteString("\nEnd with a complete closing sentence that invites the FOR side to deliver its opening statement.")
	return &Compiled{
		SystemPrompt: moderatorSystem,
		UserPrompt:   b.String(),
		MaxTokens:    in.Current.MaxTokens,
		Temperature:  0.7,
	}
}

func moderatorTransition(in Input) *Compiled {
	var prev *debate.Turn
	if len(in.Completed) > 0 {
		prev = &in.Completed[len(in.Completed)-1]
	}
	var b strings.Builder
	if prev != nil {
		fmt.Fprintf(&b, "The %s side has just finished its %s.\n", strings.ToUpper(string(prev.Speaker)), humanTurnType(prev.Config.Type))
	}
	if in.Next != nil {
		fmt.Fprintf(&b, "Hand the floor to the %s side for its %s.\n", strings.ToUpper(string(in.Next.Speaker)), humanTurnType(in.Next.Type))
	}
	b.WriteString("Do not evaluate, praise, or criticize anything that was said. Stay under 50 words.")
	return &Compiled{
		SystemPrompt: moderatorSystem,
		UserPrompt:   b.String(),
		MaxTokens:    in.Current.MaxTokens,
		Temperature:  0.5,
	}
}

func moderatorIntervention(in Input) *Compiled {
	v := in.Violation
	var b strings.Builder
	b.WriteString("A debate rule has been broken and you must intervene.\n")
	if v != nil {
		fmt.Fprintf(&b, "Rule: %s. Severity: %s.\n", v.Rule, v.Severity)
		if v.Description != "" {
			fmt.Fprintf(&b, "Details: %s\n", v.Description)
		}
	}
	b.WriteString("Name the rule, redirect the debate back on track, and remain strictly neutral. ")
	b.WriteString("Match your tone to the severity: gentle for minor breaches, firm for serious ones.")
	return &Compiled{
		SystemPrompt: moderatorSystem,
		UserPrompt:   b.String(),
		MaxTokens:    in.Current.MaxTokens,
		Temperature:  0.4,
	}
}

func moderatorSummary(in Input) *Compiled {
	var b strings.Builder
	fmt.Fprintf(&b, "The debate on %q has concluded. Deliver a final neutral recap.\n\n", in.Session.Topic)
	b.WriteString("Transcript of debater turns:\n")
	b.WriteString(relevantHistory(in.Completed, nil))
	b.WriteString("\nGive equal attention to the main arguments of each side. ")
	b.WriteString("Do not declare, imply, or hint at a winner. Close by thanking both sides and the audience.")
	return &Compiled{
		SystemPrompt: moderatorSystem,
		UserPrompt:   b.String(),
		MaxTokens:    in.Current.MaxTokens,
		Temperature:  0.5,
	}
}

func debater(in Input) *Compiled {
	s := in.Session
	side := "FOR"
	stance := "argue in favor of"
	if in.Current.Speaker == debate.SpeakerAgainst {
		side = "AGAINST"
		stance = "argue against"
	}

	system := fmt.Sprintf(
		"You are the %s debater in a formal debate. Your assigned position is to %s the topic: %q. "+
			"Stay in role for the whole debate, argue only your assigned side, and never address the audience as an AI.",
		side, stance, s.Topic,
	)

	var b strings.Builder
	fmt.Fprintf(&b, "It is your turn: %s.\n", in.Current.Label)
	b.WriteString(turnInstructions(in.Current.Type))
	b.WriteString("\n")

	if history := relevantHistory(in.Completed, in.Interventions); history != "" {
		b.WriteString("\nDebate so far:\n")
		b.WriteString(history)
	}
	if block := customRulesBlock(s.CustomRules); block != "" {
		b.WriteString(block)
	}

	words := targetWords(in.Current.Type)
	intro, body, concl := structuralBudget(in.Current.Type)
	fmt.Fprintf(&b, "\nAim for roughly %d words. Structure your turn as about %d%% introduction, %d%% body, %d%% conclusion.", words, intro, body, concl)

	temp := 0.7
	if in.Current.Type == debate.TurnRebuttal || in.Current.Type == debate.TurnCrossExamination {
		temp = 0.8
	}
	return &Compiled{
		SystemPrompt: system,
		UserPrompt:   b.String(),
		MaxTokens:    in.Current.MaxTokens,
		Temperature:  temp,
	}
}

func turnInstructions(t debate.TurnType) string {
	switch t {
	case debate.TurnOpening:
		return "Present your side's position and the two or three core arguments you will develop. Do not rebut yet."
	case debate.TurnConstructive:
		return "Develop your strongest arguments in depth, with evidence and examples."
	case debate.TurnRebuttal:
		return "Respond directly to the opposing side's arguments. Quote or paraphrase what you are rebutting."
	case debate.TurnCrossExamination:
		return "Pose pointed questions that expose weaknesses in the opposing case, and answer any questions put to you."
	case debate.TurnClosing:
		return "Summarize your case, address the strongest opposing point, and make your final appeal. Introduce no new arguments."
	}
	return ""
}

func targetWords(t debate.TurnType) int {
	switch t {
	case debate.TurnOpening:
		return 250
	case debate.TurnConstructive:
		return 300
	case debate.TurnRebuttal:
		return 250
	case debate.TurnCrossExamination:
		return 150
	case debate.TurnClosing:
		return 200
	}
	return 200
}

func structuralBudget(t debate.TurnType) (intro, body, conclusion int) {
	switch t {
	case debate.TurnOpening:
		return 25, 60, 15
	case debate.TurnClosing:
		return 15, 55, 30
	default:
		return 15, 70, 15
	}
}

// relevantHistory renders the redacted transcript for debaters: all
// non-moderator turns plus moderator interventions, merged in start order;
// intro, transitions and summary are elided.
func relevantHistory(completed []debate.Turn, interventions []debate.Turn) string {
	keep := make([]debate.Turn, 0, len(completed)+len(interventions))
	for _, turn := range completed {
		if turn.Speaker == debate.SpeakerModerator && turn.Config.Type != debate.TurnModeratorIntervention {
			continue
		}
		keep = append(keep, turn)
	}
	keep = append(keep, interventions...)
	sort.SliceStable(keep, func(i, j int) bool {
		return keep[i].StartedAt.Before(keep[j].StartedAt)
	})

	var b strings.Builder
	for _, turn := range keep {
		speaker := strings.ToUpper(string(turn.Speaker))
		fmt.Fprintf(&b, "[%s - %s]\n%s\n\n", speaker, humanTurnType(turn.Config.Type), turn.Content)
	}
	return b.String()
}

func customRulesBlock(rules []string) string {
	if len(rules) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nCustom rules for this debate:\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	return b.String()
}

func humanTurnType(t debate.TurnType) string {
	switch t {
	case debate.TurnOpening:
		return "opening statement"
	case debate.TurnConstructive:
		return "constructive argument"
	case debate.TurnRebuttal:
		return "rebuttal"
	case debate.TurnCrossExamination:
		return "cross-examination"
	case debate.TurnClosing:
		return "closing statement"
	case debate.TurnModeratorIntro:
		return "introduction"
	case debate.TurnModeratorTransition:
		return "transition"
	case debate.TurnModeratorIntervention:
		return "intervention"
	case debate.TurnModeratorSummary:
		return "summary"
	}
	return string(t)
}
