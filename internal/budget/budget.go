// Package budget admits or denies turns against a per-debate token budget
// and keeps the running usage tally.
package budget

import (
	"context"
	"fmt"
	"time"

	"rostra/internal/domain/debate"
	"rostra/internal/llm"
	"rostra/internal/pricing"
	"rostra/internal/store"
)

const (
	budgetFloor   = 100_000
	budgetCeiling = 300_000

	// A debate with fewer tokens than this left cannot complete another turn.
	minViableRemaining = 100

	defaultWarningThreshold = 0.80
	criticalThreshold       = 0.95
)

// WarningLevel grades how close a debate is to its budget.
type WarningLevel string

const (
	WarnNone     WarningLevel = "none"
	WarnWarning  WarningLevel = "warning"
	WarnCritical WarningLevel = "critical"
)

// Config tunes admission control. Zero values fall back to derived budgets
// and the default warning threshold.
type Config struct {
	// TokensPerDebate overrides the turn-count-derived budget when > 0.
	TokensPerDebate int
	// WarningThreshold is the utilization fraction at which warnings start.
	WarningThreshold float64
	// HardLimit denies turns whose estimate exceeds the remaining budget.
	HardLimit bool
	// CostLimitUSD caps cumulative spend when > 0.
	CostLimitUSD float64
}

// Check is the verdict for one prospective turn.
type Check struct {
	Admitted         bool
	Reason           string
	TokensRemaining  int
	EstimatedCostUSD float64
	WarningLevel     WarningLevel
}

// Manager owns DebateUsage records. It is safe for concurrent use across
// debates; callers serialize per debate.
type Manager struct {
	store *store.Store
	rates *pricing.Table
	cfg   Config
}

func NewManager(st *store.Store, rates *pricing.Table, cfg Config) *Manager {
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold >= 1 {
		cfg.WarningThreshold = defaultWarningThreshold
	}
	return &Manager{store: st, rates: rates, cfg: cfg}
}

// BudgetForTurnCount derives the token budget for a debate with n debater
// turns: per-turn allowance plus moderator overhead, clamped to sane bounds.
func BudgetForTurnCount(n int) int {
	b := 20_000*n + 5_000*(n+2) + 20_000
	if b < budgetFloor {
		return budgetFloor
	}
	if b > budgetCeiling {
		return budgetCeiling
	}
	return b
}

// Initialize creates and persists a fresh usage record for a debate. An
// existing record is returned unchanged so crashed runs keep their tally.
func (m *Manager) Initialize(ctx context.Context, sessionID string, turnCount int, ttl time.Duration) (*debate.DebateUsage, error) {
	if existing, err := m.store.GetUsage(ctx, sessionID); err == nil {
		return existing, nil
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	budget := m.cfg.TokensPerDebate
	if budget <= 0 {
		budget = BudgetForTurnCount(turnCount)
	}
	now := time.Now().UTC()
	usage := &debate.DebateUsage{
		SessionID:       sessionID,
		Turns:           []debate.TurnUsage{},
		BudgetTokens:    budget,
		RemainingTokens: budget,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.PutUsage(ctx, usage, ttl); err != nil {
		return nil, fmt.Errorf("persist usage: %w", err)
	}
	return usage, nil
}

// CheckBudget decides whether a turn estimated at estimatedInput prompt
// tokens and up to maxOutput completion tokens may proceed.
func (m *Manager) CheckBudget(usage *debate.DebateUsage, provider llm.ProviderType, estimatedInput, maxOutput int) Check {
	estimated := estimatedInput + maxOutput
	cost := m.rates.Cost(provider, estimatedInput, maxOutput)
	c := Check{
		Admitted:         true,
		TokensRemaining:  usage.RemainingTokens,
		EstimatedCostUSD: cost,
		WarningLevel:     m.warningLevel(usage),
	}
	if m.cfg.HardLimit && estimated > usage.RemainingTokens {
		c.Admitted = false
		c.Reason = fmt.Sprintf("turn needs up to %d tokens but only %d remain", estimated, usage.RemainingTokens)
		return c
	}
	if m.cfg.CostLimitUSD > 0 && usage.CostUSD+cost > m.cfg.CostLimitUSD {
		c.Admitted = false
		c.Reason = fmt.Sprintf("turn would push spend to $%.4f, over the $%.2f limit", usage.CostUSD+cost, m.cfg.CostLimitUSD)
		return c
	}
	return c
}

// RecordUsage folds a completed generation into the tally and persists it
// with the session's remaining TTL.
func (m *Manager) RecordUsage(ctx context.Context, usage *debate.DebateUsage, turnID string, provider llm.ProviderType, result *llm.Result, ttl time.Duration) error {
	cost := m.rates.Cost(provider, result.InputTokens, result.OutputTokens)
	now := time.Now().UTC()
	usage.Turns = append(usage.Turns, debate.TurnUsage{
		TurnID:       turnID,
		Provider:     string(provider),
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      cost,
		RecordedAt:   now,
	})
	usage.InputTokens += result.InputTokens
	usage.OutputTokens += result.OutputTokens
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	usage.CostUSD += cost
	usage.RemainingTokens = usage.BudgetTokens - usage.TotalTokens
	if usage.RemainingTokens < 0 {
		usage.RemainingTokens = 0
	}
	if usage.BudgetTokens > 0 {
		usage.UtilizationPct = float64(usage.TotalTokens) / float64(usage.BudgetTokens) * 100
	}
	usage.UpdatedAt = now

	if err := m.store.PutUsage(ctx, usage, ttl); err != nil {
		return fmt.Errorf("persist usage: %w", err)
	}
	return nil
}

// ShouldEndDueToBudget reports whether the debate must stop now, with a
// human-readable reason when it must.
func (m *Manager) ShouldEndDueToBudget(usage *debate.DebateUsage) (bool, string) {
	if usage.RemainingTokens < minViableRemaining {
		return true, fmt.Sprintf("token budget exhausted (%d of %d used)", usage.TotalTokens, usage.BudgetTokens)
	}
	if m.cfg.CostLimitUSD > 0 && usage.CostUSD >= m.cfg.CostLimitUSD {
		return true, fmt.Sprintf("cost limit reached ($%.4f of $%.2f)", usage.CostUSD, m.cfg.CostLimitUSD)
	}
	return false, ""
}

func (m *Manager) warningLevel(usage *debate.DebateUsage) WarningLevel {
	if usage.BudgetTokens <= 0 {
		return WarnNone
	}
	frac := float64(usage.TotalTokens) / float64(usage.BudgetTokens)
	switch {
	case frac >= criticalThreshold:
		return WarnCritical
	case frac >= m.cfg.WarningThreshold:
		return WarnWarning
	default:
		return WarnNone
	}
}
