// Package engine holds the turn sequencer: deterministic schedule
// generation plus the finite-state machine that advances it.
package engine

import (
	"fmt"

	"rostra/internal/domain/debate"
)

// Moderator turn budgets, aligned with the prompt compiler's shapes.
const (
	introMaxTokens        = 400
	transitionMaxTokens   = 150
	interventionMaxTokens = 120
	summaryMaxTokens      = 500

	defaultDebaterMaxTokens = 800
	debaterMinTokens        = 100
)

// debaterTypes returns the ordered turn types for N debater turns. N must
// be even and within 2..10.
func debaterTypes(n int) ([]debate.TurnType, error) {
	switch n {
	case 2:
		return []debate.TurnType{debate.TurnOpening, debate.TurnOpening}, nil
	case 4:
		return []debate.TurnType{
			debate.TurnOpening, debate.TurnOpening,
			debate.TurnClosing, debate.TurnClosing,
		}, nil
	case 6:
		return []debate.TurnType{
			debate.TurnOpening, debate.TurnOpening,
			debate.TurnRebuttal, debate.TurnRebuttal,
			debate.TurnClosing, debate.TurnClosing,
		}, nil
	case 8:
		return []debate.TurnType{
			debate.TurnOpening, debate.TurnOpening,
			debate.TurnConstructive, debate.TurnConstructive,
			debate.TurnRebuttal, debate.TurnRebuttal,
			debate.TurnClosing, debate.TurnClosing,
		}, nil
	case 10:
		return []debate.TurnType{
			debate.TurnOpening, debate.TurnOpening,
			debate.TurnConstructive, debate.TurnConstructive,
			debate.TurnRebuttal, debate.TurnRebuttal,
			debate.TurnRebuttal, debate.TurnRebuttal,
			debate.TurnClosing, debate.TurnClosing,
		}, nil
	}
	return nil, fmt.Errorf("turn count must be one of 2, 4, 6, 8, 10; got %d", n)
}

// GenerateSchedule derives the full ordered turn sequence from (format,
// debater turn count): moderator intro, alternating debater turns starting
// with FOR, a moderator transition before every debater turn after the
// first, and a closing moderator summary. The oxford format swaps the first
// rebuttal pair for a cross-examination pair when the table has a
// constructive pair, keeping exactly N debater turns.
func GenerateSchedule(format debate.Format, turnCount, debaterMaxTokens int) ([]debate.TurnConfig, error) {
	if !debate.ValidFormat(format) {
		return nil, fmt.Errorf("unknown format %q", format)
	}
	types, err := debaterTypes(turnCount)
	if err != nil {
		return nil, err
	}
	if format == debate.FormatOxford && turnCount >= 8 {
		for i, t := range types {
			if t == debate.TurnRebuttal {
				types[i] = debate.TurnCrossExamination
				types[i+1] = debate.TurnCrossExamination
				break
			}
		}
	}
	if debaterMaxTokens <= 0 {
		debaterMaxTokens = defaultDebaterMaxTokens
	}

	sequence := make([]debate.TurnConfig, 0, 2*turnCount+2)
	add := func(cfg debate.TurnConfig) {
		cfg.Index = len(sequence)
		sequence = append(sequence, cfg)
	}

	add(debate.TurnConfig{
		Type:        debate.TurnModeratorIntro,
		Speaker:     debate.SpeakerModerator,
		MaxTokens:   introMaxTokens,
		Label:       "Moderator Introduction",
		Description: "Frames the topic and invites the first speaker",
	})

	for i, t := range types {
		speaker := debate.SpeakerFor
		if i%2 == 1 {
			speaker = debate.SpeakerAgainst
		}
		if i > 0 {
			add(debate.TurnConfig{
				Type:      debate.TurnModeratorTransition,
				Speaker:   debate.SpeakerModerator,
				MaxTokens: transitionMaxTokens,
				Label:     "Moderator Transition",
			})
		}
		add(debate.TurnConfig{
			Type:        t,
			Speaker:     speaker,
			MaxTokens:   debaterMaxTokens,
			MinTokens:   debaterMinTokens,
			Label:       turnLabel(t, speaker),
			Description: turnDescription(t),
		})
	}

	add(debate.TurnConfig{
		Type:        debate.TurnModeratorSummary,
		Speaker:     debate.SpeakerModerator,
		MaxTokens:   summaryMaxTokens,
		Label:       "Moderator Summary",
		Description: "Neutral recap with equal attention per side",
	})

	return sequence, nil
}

func turnLabel(t debate.TurnType, speaker debate.Speaker) string {
	side := "FOR"
	if speaker == debate.SpeakerAgainst {
		side = "AGAINST"
	}
	switch t {
	case debate.TurnOpening:
		return "Opening Statement (" + side + ")"
	case debate.TurnConstructive:
		return "Constructive Argument (" + side + ")"
	case debate.TurnRebuttal:
		return "Rebuttal (" + side + ")"
	case debate.TurnCrossExamination:
		return "Cross-Examination (" + side + ")"
	case debate.TurnClosing:
		return "Closing Statement (" + side + ")"
	}
	return string(t)
}

func turnDescription(t debate.TurnType) string {
	switch t {
	case debate.TurnOpening:
		return "Introduces the side's position and core arguments"
	case debate.TurnConstructive:
		return "Develops the side's strongest arguments with evidence"
	case debate.TurnRebuttal:
		return "Responds directly to the opposing side's arguments"
	case debate.TurnCrossExamination:
		return "Poses pointed questions probing the opposing case"
	case debate.TurnClosing:
		return "Summarizes the side's case and final appeal"
	}
	return ""
}

// DebaterTurns extracts the debater-only configs from a schedule, in order.
func DebaterTurns(sequence []debate.TurnConfig) []debate.TurnConfig {
	out := make([]debate.TurnConfig, 0, len(sequence))
	for _, cfg := range sequence {
		if cfg.Speaker != debate.SpeakerModerator {
			out = append(out, cfg)
		}
	}
	return out
}
