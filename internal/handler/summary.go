package handler

import (
	"log/slog"
	"net/http"

	"rostra/internal/domain/debate"
	"rostra/internal/httputil"
	"rostra/internal/store"
)

// SummaryHandler serves the transcript-and-statistics view of a debate.
type SummaryHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewSummaryHandler(st *store.Store, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{store: st, logger: logger}
}

type summaryResponse struct {
	Session       debate.PublicSession     `json:"session"`
	EngineStatus  debate.EngineStatus      `json:"engine_status"`
	Turns         []debate.Turn            `json:"turns"`
	Interventions []debate.Turn            `json:"interventions,omitempty"`
	Statistics    summaryStatistics        `json:"statistics"`
	Assignment    *debate.HiddenAssignment `json:"assignment,omitempty"`
}

type summaryStatistics struct {
	CompletedTurns int     `json:"completed_turns"`
	TotalTurns     int     `json:"total_turns"`
	TotalTokens    int     `json:"total_tokens"`
	CostUSD        float64 `json:"cost_usd"`
}

// GetSummary handles GET /debate/{id}/summary. The hidden assignment is
// attached only once the session has completed.
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	session, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	resp := summaryResponse{
		Session:      *session.Public(),
		EngineStatus: debate.EngineInitialized,
		Turns:        []debate.Turn{},
	}

	if state, err := h.store.GetEngineState(r.Context(), id); err == nil {
		resp.EngineStatus = state.Status
		resp.Turns = state.CompletedTurns
		resp.Interventions = state.Interventions
		resp.Statistics.CompletedTurns = len(state.CompletedTurns)
		resp.Statistics.TotalTurns = len(state.TurnSequence)
	} else if !store.IsNotFound(err) {
		respondDomainError(w, h.logger, err)
		return
	}

	if usage, err := h.store.GetUsage(r.Context(), id); err == nil {
		resp.Statistics.TotalTokens = usage.TotalTokens
		resp.Statistics.CostUSD = usage.CostUSD
	}

	if session.Status == debate.SessionCompleted {
		assignment := session.Assignment
		resp.Assignment = &assignment
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}
