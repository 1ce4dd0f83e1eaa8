package debate

import "time"

// TurnUsage records the tokens and cost consumed by one completed turn.
type TurnUsage struct {
	TurnID       string    `json:"turn_id"`
	Provider     string    `json:"provider"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// DebateUsage is the running budget tally for one debate. Owned and mutated
// only by the budget manager.
type DebateUsage struct {
	SessionID         string      `json:"session_id"`
	Turns             []TurnUsage `json:"turns"`
	InputTokens       int         `json:"input_tokens"`
	OutputTokens      int         `json:"output_tokens"`
	TotalTokens       int         `json:"total_tokens"`
	CostUSD           float64     `json:"cost_usd"`
	BudgetTokens      int         `json:"budget_tokens"`
	RemainingTokens   int         `json:"remaining_tokens"`
	UtilizationPct    float64     `json:"utilization_pct"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
