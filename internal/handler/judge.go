package handler

import (
	"log/slog"
	"net/http"

	"rostra/internal/httputil"
	"rostra/internal/judge"
)

// JudgeHandler serves the post-debate evaluation.
type JudgeHandler struct {
	analyzer *judge.Analyzer
	logger   *slog.Logger
}

func NewJudgeHandler(analyzer *judge.Analyzer, logger *slog.Logger) *JudgeHandler {
	return &JudgeHandler{analyzer: analyzer, logger: logger}
}

// GetJudgeAnalysis handles GET /debate/{id}/judge. The analysis is computed
// on demand when the eager background pass has not run; ?force=true
// regenerates it.
func (h *JudgeHandler) GetJudgeAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	analysis, err := h.analyzer.Analyze(r.Context(), id, force)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, analysis)
}
