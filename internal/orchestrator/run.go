package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rostra/internal/budget"
	"rostra/internal/domain/debate"
	"rostra/internal/engine"
	"rostra/internal/llm"
	"rostra/internal/prompt"
	"rostra/internal/safety"
	"rostra/internal/store"
)

// turnSnapshot is what one loop iteration needs from the locked state read.
type turnSnapshot struct {
	current       debate.TurnConfig
	next          *debate.TurnConfig
	completed     []debate.Turn
	interventions []debate.Turn
	status        debate.EngineStatus
}

// run drives one debate to a terminal state. It holds the per-debate lock
// only around state reads and mutations, never across a generation, so
// pause/resume/end from HTTP handlers stay responsive.
func (o *Orchestrator) run(ctx context.Context, debateID string) error {
	entry := o.locks.acquire(debateID)
	defer o.locks.release(debateID)

	session, err := o.store.GetSession(ctx, debateID)
	if err != nil {
		return err
	}
	ttl := store.SessionTTL(session)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go o.heartbeat(hbCtx, debateID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		snap, err := o.hydrate(ctx, entry, session, ttl)
		if err != nil {
			return err
		}
		if snap == nil {
			// paused or terminal; whoever made the transition emitted its event
			return nil
		}

		if err := o.executeTurn(ctx, entry, session, ttl, snap); err != nil {
			return err
		}
		if done, err := o.afterTurn(ctx, entry, session, ttl, snap.current); done || err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.TurnPause):
		}
	}
}

// hydrate reloads engine state under the lock, starting the machine on the
// first iteration. A nil snapshot with nil error means the loop must stop.
func (o *Orchestrator) hydrate(ctx context.Context, entry *lockEntry, session *debate.DebateSession, ttl time.Duration) (*turnSnapshot, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	state, err := o.store.GetEngineState(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	seq := engine.Restore(state)

	if seq.Status() == debate.EngineInitialized {
		if err := seq.Start(); err != nil {
			return nil, err
		}
		if err := o.store.PutEngineState(ctx, seq.State(), ttl); err != nil {
			return nil, err
		}
		o.setSessionStatus(ctx, session.ID, debate.SessionActive)
		o.bus.Publish(debate.NewDebateStartedEvent(session.ID, session.Topic, len(state.TurnSequence)))
	}
	if seq.Status() != debate.EngineInProgress {
		return nil, nil
	}

	cfg, err := seq.CurrentTurn()
	if err != nil {
		return nil, err
	}
	snap := &turnSnapshot{
		current:       *cfg,
		next:          seq.NextTurn(),
		completed:     append([]debate.Turn(nil), state.CompletedTurns...),
		interventions: append([]debate.Turn(nil), state.Interventions...),
		status:        seq.Status(),
	}
	return snap, nil
}

// executeTurn runs one scheduled turn end to end: compile, admit, stream,
// record. The lock is released during the stream.
func (o *Orchestrator) executeTurn(ctx context.Context, entry *lockEntry, session *debate.DebateSession, ttl time.Duration, snap *turnSnapshot) error {
	cfg := snap.current

	compiled, err := prompt.Compile(prompt.Input{
		Session:       session,
		Completed:     snap.completed,
		Interventions: snap.interventions,
		Current:       cfg,
		Next:          snap.next,
	})
	if err != nil {
		return o.fail(ctx, entry, session, ttl, cfg.Index, err.Error())
	}

	provider, err := o.providerFor(cfg, session)
	if err != nil {
		return o.fail(ctx, entry, session, ttl, cfg.Index, err.Error())
	}

	messages := []llm.Message{{Role: "user", Content: compiled.UserPrompt}}
	estimatedInput := provider.CountMessageTokens(compiled.SystemPrompt, messages)

	usage, err := o.store.GetUsage(ctx, session.ID)
	if err != nil {
		return err
	}
	check := o.budget.CheckBudget(usage, provider.Type(), estimatedInput, compiled.MaxTokens)
	if !check.Admitted {
		o.bus.Publish(debate.NewTurnErrorEvent(session.ID, cfg.Index, check.Reason, false))
		return o.fail(ctx, entry, session, ttl, cfg.Index, "budget denied: "+check.Reason)
	}
	if check.WarningLevel != budget.WarnNone {
		o.bus.Publish(debate.NewBudgetWarningEvent(session.ID, usage.UtilizationPct, check.TokensRemaining, string(check.WarningLevel)))
	}

	estimatedTotal := estimatedInput + compiled.MaxTokens
	if err := o.limiter.WaitForCapacity(ctx, provider.Type(), estimatedTotal); err != nil {
		return err
	}

	params := llm.GenerateParams{
		System:      compiled.SystemPrompt,
		Messages:    messages,
		MaxTokens:   compiled.MaxTokens,
		Temperature: compiled.Temperature,
	}
	startedAt := time.Now().UTC()
	stream, err := llm.Retry(ctx, o.retry, provider.Type(), func() (*llm.Stream, error) {
		return provider.GenerateStream(ctx, params)
	})
	if err != nil {
		o.bus.Publish(debate.NewTurnErrorEvent(session.ID, cfg.Index, err.Error(), false))
		return o.fail(ctx, entry, session, ttl, cfg.Index, fmt.Sprintf("generation failed: %v", err))
	}

	o.bus.Publish(debate.NewTurnStartedEvent(session.ID, cfg, string(provider.Type())))

	var content strings.Builder
	for chunk := range stream.Chunks() {
		content.WriteString(chunk.Delta)
		o.bus.Publish(debate.NewTurnStreamingEvent(session.ID, cfg.Index, chunk.Delta, content.Len()))
	}
	result, err := stream.Result(ctx)
	if err != nil {
		o.bus.Publish(debate.NewTurnErrorEvent(session.ID, cfg.Index, err.Error(), false))
		return o.fail(ctx, entry, session, ttl, cfg.Index, fmt.Sprintf("stream failed: %v", err))
	}
	o.limiter.ConsumeCapacity(provider.Type(), estimatedTotal, result.InputTokens+result.OutputTokens)

	completedAt := time.Now().UTC()
	turn := debate.Turn{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		Speaker:     cfg.Speaker,
		Provider:    string(provider.Type()),
		Content:     result.Content,
		TokenCount:  result.OutputTokens,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}

	entry.mu.Lock()
	state, err := o.store.GetEngineState(ctx, session.ID)
	if err != nil {
		entry.mu.Unlock()
		return err
	}
	seq := engine.Restore(state)
	if seq.Status() != debate.EngineInProgress {
		// paused or cancelled while streaming; the partial turn is discarded
		entry.mu.Unlock()
		return nil
	}
	if err := seq.RecordTurn(turn); err != nil {
		entry.mu.Unlock()
		return o.fail(ctx, entry, session, ttl, cfg.Index, err.Error())
	}
	if err := o.store.PutEngineState(ctx, seq.State(), ttl); err != nil {
		entry.mu.Unlock()
		return err
	}
	entry.mu.Unlock()

	recorded := seq.State().CompletedTurns[len(seq.State().CompletedTurns)-1]
	o.bus.Publish(debate.NewTurnCompletedEvent(session.ID, &recorded, result.Latency))

	if err := o.budget.RecordUsage(ctx, usage, turn.ID, provider.Type(), result, ttl); err != nil {
		return err
	}

	if !cfg.Type.ModeratorType() {
		o.scanForViolations(ctx, entry, session, ttl, recorded)
	}
	return nil
}

// afterTurn checks budget exhaustion and terminal progress. It reports done
// when the loop must stop.
func (o *Orchestrator) afterTurn(ctx context.Context, entry *lockEntry, session *debate.DebateSession, ttl time.Duration, cfg debate.TurnConfig) (bool, error) {
	usage, err := o.store.GetUsage(ctx, session.ID)
	if err != nil {
		return true, err
	}

	entry.mu.Lock()
	state, err := o.store.GetEngineState(ctx, session.ID)
	if err != nil {
		entry.mu.Unlock()
		return true, err
	}
	seq := engine.Restore(state)
	status := seq.Status()
	completed, total := seq.Progress()
	entry.mu.Unlock()

	if status == debate.EngineInProgress {
		if end, reason := o.budget.ShouldEndDueToBudget(usage); end {
			o.bus.Publish(debate.NewBudgetExceededEvent(session.ID, reason))
			if err := o.mutate(ctx, session.ID, func(s *engine.Sequencer) error {
				return s.Cancel(reason)
			}); err != nil {
				return true, err
			}
			o.setSessionStatus(ctx, session.ID, debate.SessionCompleted)
			o.bus.Publish(debate.NewDebateCancelledEvent(session.ID, reason, completed))
			return true, nil
		}
	}

	o.bus.Publish(debate.NewProgressUpdateEvent(session.ID, completed, total))

	if status == debate.EngineCompleted {
		o.setSessionStatus(ctx, session.ID, debate.SessionCompleted)
		o.bus.Publish(debate.NewDebateCompletedEvent(session.ID, completed, usage.TotalTokens, usage.CostUSD))
		o.logger.Info("debate completed",
			"debate_id", session.ID,
			"turns", completed,
			"tokens", usage.TotalTokens,
			"cost_usd", usage.CostUSD)
		if o.onCompleted != nil {
			go o.onCompleted(session.ID)
		}
		return true, nil
	}
	return status != debate.EngineInProgress, nil
}

// fail records a nonrecoverable error, flips the session, and stops the
// loop.
func (o *Orchestrator) fail(ctx context.Context, entry *lockEntry, session *debate.DebateSession, ttl time.Duration, turnIndex int, msg string) error {
	entry.mu.Lock()
	state, err := o.store.GetEngineState(ctx, session.ID)
	if err == nil {
		seq := engine.Restore(state)
		if serr := seq.SetError(msg); serr == nil {
			err = o.store.PutEngineState(ctx, seq.State(), ttl)
		}
	}
	entry.mu.Unlock()
	if err != nil {
		o.logger.Error("error-state persist failed", "debate_id", session.ID, "error", err)
	}

	o.setSessionStatus(ctx, session.ID, debate.SessionError)
	o.bus.Publish(debate.NewDebateErrorEvent(session.ID, msg))
	return fmt.Errorf("debate %s failed at turn %d: %s", session.ID, turnIndex, msg)
}

// providerFor resolves the moderator model for moderator turns and the
// hidden-assignment model for debater turns.
func (o *Orchestrator) providerFor(cfg debate.TurnConfig, session *debate.DebateSession) (llm.Provider, error) {
	if cfg.Speaker == debate.SpeakerModerator {
		return o.registry.Moderator()
	}
	model := session.Assignment.ForPosition
	if cfg.Speaker == debate.SpeakerAgainst {
		model = session.Assignment.AgainstPosition
	}
	return o.registry.ForDebater(model)
}

// scanForViolations pattern-screens a completed debater turn. Medium or
// worse findings trigger a moderator intervention.
func (o *Orchestrator) scanForViolations(ctx context.Context, entry *lockEntry, session *debate.DebateSession, ttl time.Duration, turn debate.Turn) {
	if o.patterns == nil {
		return
	}
	screened := o.patterns.Screen(turn.Content)
	var worst *debate.Violation
	for _, f := range screened.Findings {
		v := debate.Violation{
			Rule:        string(f.Category),
			Severity:    debate.ViolationSeverity(f.Severity),
			Description: fmt.Sprintf("matched forbidden pattern in %s content", f.Category),
		}
		o.bus.Publish(debate.NewViolationDetectedEvent(session.ID, turn.Config.Index, v))
		if f.Severity == safety.SeverityLow {
			continue
		}
		if worst == nil || severityRank(v.Severity) > severityRank(worst.Severity) {
			worst = &v
		}
	}
	if worst == nil {
		return
	}
	if err := o.intervene(ctx, entry, session, ttl, turn, worst); err != nil {
		o.logger.Warn("moderator intervention failed", "debate_id", session.ID, "error", err)
	}
}

// intervene generates a moderator interjection for a rule breach and splices
// it into the engine state without advancing the schedule.
func (o *Orchestrator) intervene(ctx context.Context, entry *lockEntry, session *debate.DebateSession, ttl time.Duration, after debate.Turn, v *debate.Violation) error {
	moderator, err := o.registry.Moderator()
	if err != nil {
		return err
	}
	compiled, err := prompt.Compile(prompt.Input{
		Session:   session,
		Current:   debate.TurnConfig{Type: debate.TurnModeratorIntervention, Speaker: debate.SpeakerModerator, MaxTokens: 120},
		Violation: v,
	})
	if err != nil {
		return err
	}
	params := llm.GenerateParams{
		System:      compiled.SystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: compiled.UserPrompt}},
		MaxTokens:   compiled.MaxTokens,
		Temperature: compiled.Temperature,
	}
	if err := o.limiter.WaitForCapacity(ctx, moderator.Type(), compiled.MaxTokens*2); err != nil {
		return err
	}
	result, err := llm.Retry(ctx, o.retry, moderator.Type(), func() (*llm.Result, error) {
		return moderator.Generate(ctx, params)
	})
	if err != nil {
		return err
	}
	o.limiter.ConsumeCapacity(moderator.Type(), compiled.MaxTokens*2, result.InputTokens+result.OutputTokens)

	now := time.Now().UTC()
	turn := debate.Turn{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		Speaker:     debate.SpeakerModerator,
		Provider:    string(moderator.Type()),
		Content:     result.Content,
		TokenCount:  result.OutputTokens,
		StartedAt:   now,
		CompletedAt: now,
		Violations:  []debate.Violation{*v},
	}
	if err := o.mutate(ctx, session.ID, func(s *engine.Sequencer) error {
		return s.InsertIntervention(turn)
	}); err != nil {
		return err
	}

	usage, err := o.store.GetUsage(ctx, session.ID)
	if err == nil {
		if rerr := o.budget.RecordUsage(ctx, usage, turn.ID, moderator.Type(), result, ttl); rerr != nil {
			o.logger.Warn("intervention usage record failed", "debate_id", session.ID, "error", rerr)
		}
	}

	o.bus.Publish(debate.NewInterventionEvent(session.ID, after.Config.Index, result.Content))
	return nil
}

func severityRank(s debate.ViolationSeverity) int {
	switch s {
	case debate.ViolationLow:
		return 0
	case debate.ViolationMedium:
		return 1
	case debate.ViolationHigh:
		return 2
	case debate.ViolationCritical:
		return 3
	}
	return -1
}

// heartbeat keeps subscriber streams warm while a run loop is live.
func (o *Orchestrator) heartbeat(ctx context.Context, debateID string) {
	ticker := time.NewTicker(o.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.bus.Publish(debate.NewHeartbeatEvent(debateID))
		}
	}
}
