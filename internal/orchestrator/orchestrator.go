// Package orchestrator coordinates the sequencer, prompt compiler, budget
// manager, providers and event bus into the debate run loop.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rostra/internal/budget"
	"rostra/internal/domain"
	"rostra/internal/domain/debate"
	"rostra/internal/engine"
	"rostra/internal/events"
	"rostra/internal/llm"
	"rostra/internal/ratelimit"
	"rostra/internal/safety"
	"rostra/internal/store"
)

// Config carries the orchestrator's tunables.
type Config struct {
	// MaxTokensPerTurn caps each debater turn's completion budget.
	MaxTokensPerTurn int
	// SessionTTL bounds how long a debate and its records live.
	SessionTTL time.Duration
	// TurnPause is the yield between turns so the loop never runs hot.
	TurnPause time.Duration
	// HeartbeatInterval spaces the keep-alive events on the bus.
	HeartbeatInterval time.Duration
}

func (c *Config) defaults() {
	if c.MaxTokensPerTurn <= 0 {
		c.MaxTokensPerTurn = 800
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.TurnPause <= 0 {
		c.TurnPause = 100 * time.Millisecond
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
}

// Orchestrator owns debate lifecycles. One instance serves all debates in
// the process; per-debate runs are serialized by an advisory lock table.
type Orchestrator struct {
	cfg      Config
	store    *store.Store
	bus      *events.Bus
	registry *llm.Registry
	limiter  *ratelimit.Limiter
	budget   *budget.Manager
	pipeline *safety.Pipeline
	patterns *safety.PatternScreen
	retry    llm.RetryConfig
	logger   *slog.Logger
	locks    *lockTable

	// onCompleted runs in the background after a debate completes. Wired to
	// the judge analyzer at startup.
	onCompleted func(debateID string)

	// baseCtx parents every run loop so shutdown can stop them.
	baseCtx    context.Context
	cancelRuns context.CancelFunc
}

func New(cfg Config, st *store.Store, bus *events.Bus, registry *llm.Registry, limiter *ratelimit.Limiter, bm *budget.Manager, pipeline *safety.Pipeline, patterns *safety.PatternScreen, logger *slog.Logger) *Orchestrator {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		bus:        bus,
		registry:   registry,
		limiter:    limiter,
		budget:     bm,
		pipeline:   pipeline,
		patterns:   patterns,
		retry:      llm.DefaultRetryConfig(),
		logger:     logger,
		locks:      newLockTable(),
		baseCtx:    ctx,
		cancelRuns: cancel,
	}
}

// SetOnCompleted registers the post-completion hook. Call before serving.
func (o *Orchestrator) SetOnCompleted(fn func(debateID string)) {
	o.onCompleted = fn
}

// Shutdown stops all run loops. In-flight turns are abandoned; persisted
// state lets a later Start resume from the next unstarted turn.
func (o *Orchestrator) Shutdown() {
	o.cancelRuns()
}

// CreateRequest is a validated, not-yet-screened debate configuration.
type CreateRequest struct {
	Topic       string
	TurnCount   int
	Format      debate.Format
	CustomRules []string
}

// Create screens the input through the safety pipeline, then persists a new
// session with a hidden side assignment.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*debate.DebateSession, error) {
	verdict := o.pipeline.Validate(ctx, safety.DebateInput{
		Topic:       req.Topic,
		CustomRules: req.CustomRules,
	})
	if verdict.Blocked {
		return nil, &domain.BlockedError{Reason: verdict.BlockReason, Errors: verdict.Errors}
	}
	if !verdict.OK {
		return nil, &domain.ValidationError{Message: "invalid debate configuration", Errors: verdict.Errors}
	}

	id, err := debate.NewDebateID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	session := &debate.DebateSession{
		ID:          id,
		Topic:       verdict.Sanitized.Topic,
		TurnCount:   req.TurnCount,
		Format:      req.Format,
		CustomRules: verdict.Sanitized.CustomRules,
		Assignment:  debate.NewHiddenAssignment(),
		Status:      debate.SessionReady,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(o.cfg.SessionTTL),
	}
	if err := o.store.PutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	o.logger.Info("debate created",
		"debate_id", session.ID,
		"turns", session.TurnCount,
		"format", session.Format)
	return session, nil
}

// Initialize ensures engine state and budget exist for a debate, creating
// them on first call and reusing persisted ones after a crash.
func (o *Orchestrator) Initialize(ctx context.Context, debateID string) (*debate.EngineState, error) {
	session, err := o.store.GetSession(ctx, debateID)
	if err != nil {
		return nil, err
	}

	state, err := o.store.GetEngineState(ctx, debateID)
	if store.IsNotFound(err) {
		sequence, gerr := engine.GenerateSchedule(session.Format, session.TurnCount, o.cfg.MaxTokensPerTurn)
		if gerr != nil {
			return nil, gerr
		}
		seq := engine.NewSequencer(debateID, sequence)
		state = seq.State()
		if perr := o.store.PutEngineState(ctx, state, store.SessionTTL(session)); perr != nil {
			return nil, fmt.Errorf("persist engine state: %w", perr)
		}
	} else if err != nil {
		return nil, err
	}

	if _, err := o.budget.Initialize(ctx, debateID, session.TurnCount, store.SessionTTL(session)); err != nil {
		return nil, err
	}
	return state, nil
}

// Start launches the run loop in the background. A second Start while a
// loop is active reports the debate as already running; a terminal or
// paused debate cannot be started.
func (o *Orchestrator) Start(ctx context.Context, debateID string) error {
	state, err := o.Initialize(ctx, debateID)
	if err != nil {
		return err
	}
	switch state.Status {
	case debate.EngineInitialized, debate.EngineInProgress:
		// startable; in_progress with no live loop means a crashed run
	case debate.EnginePaused:
		return &domain.ConflictError{Message: "debate is paused; resume it instead"}
	default:
		return &domain.ConflictError{Message: fmt.Sprintf("debate is %s and cannot be started", state.Status)}
	}

	if !o.locks.tryStartRun(debateID) {
		return domain.ErrAlreadyRunning
	}
	go func() {
		defer o.locks.endRun(debateID)
		if err := o.run(o.baseCtx, debateID); err != nil {
			o.logger.Error("debate run ended with error", "debate_id", debateID, "error", err)
		}
	}()
	return nil
}

// Pause suspends the debate after the in-flight turn, if any.
func (o *Orchestrator) Pause(ctx context.Context, debateID string) error {
	err := o.mutate(ctx, debateID, func(seq *engine.Sequencer) error {
		return seq.Pause()
	})
	if err != nil {
		return err
	}
	o.setSessionStatus(ctx, debateID, debate.SessionPaused)
	o.bus.Publish(debate.NewDebatePausedEvent(debateID))
	return nil
}

// Resume restarts a paused debate's run loop.
func (o *Orchestrator) Resume(ctx context.Context, debateID string) error {
	err := o.mutate(ctx, debateID, func(seq *engine.Sequencer) error {
		return seq.Resume()
	})
	if err != nil {
		return err
	}
	o.setSessionStatus(ctx, debateID, debate.SessionActive)
	o.bus.Publish(debate.NewDebateResumedEvent(debateID))

	if !o.locks.tryStartRun(debateID) {
		// a live loop will observe the new status on its next iteration
		return nil
	}
	go func() {
		defer o.locks.endRun(debateID)
		if err := o.run(o.baseCtx, debateID); err != nil {
			o.logger.Error("debate run ended with error", "debate_id", debateID, "error", err)
		}
	}()
	return nil
}

// End cancels the debate. The in-flight generation, if any, is discarded
// when the loop observes the transition.
func (o *Orchestrator) End(ctx context.Context, debateID, reason string) error {
	if reason == "" {
		reason = "ended by user"
	}
	var completed int
	err := o.mutate(ctx, debateID, func(seq *engine.Sequencer) error {
		completed, _ = seq.Progress()
		return seq.Cancel(reason)
	})
	if err != nil {
		return err
	}
	o.setSessionStatus(ctx, debateID, debate.SessionCompleted)
	o.bus.Publish(debate.NewDebateCancelledEvent(debateID, reason, completed))
	return nil
}

// IsRunning reports whether a run loop currently owns the debate.
func (o *Orchestrator) IsRunning(debateID string) bool {
	return o.locks.isRunning(debateID)
}

// mutate applies a sequencer transition under the per-debate lock and
// persists the result. This is the only path, besides the run loop itself,
// that writes engine state.
func (o *Orchestrator) mutate(ctx context.Context, debateID string, fn func(*engine.Sequencer) error) error {
	entry := o.locks.acquire(debateID)
	defer o.locks.release(debateID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session, err := o.store.GetSession(ctx, debateID)
	if err != nil {
		return err
	}
	state, err := o.store.GetEngineState(ctx, debateID)
	if err != nil {
		return err
	}
	seq := engine.Restore(state)
	if err := fn(seq); err != nil {
		return err
	}
	return o.store.PutEngineState(ctx, seq.State(), store.SessionTTL(session))
}

func (o *Orchestrator) setSessionStatus(ctx context.Context, debateID string, status debate.SessionStatus) {
	_, err := o.store.UpdateSession(ctx, debateID, func(s *debate.DebateSession) error {
		s.Status = status
		return nil
	})
	if err != nil {
		o.logger.Warn("session status update failed", "debate_id", debateID, "status", status, "error", err)
	}
}
