// Package handler exposes the public HTTP surface: debate lifecycle,
// event streaming, summaries, judging and share codes.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"rostra/internal/domain"
	"rostra/internal/domain/debate"
	"rostra/internal/httputil"
	"rostra/internal/orchestrator"
	"rostra/internal/store"
)

// DebateHandler serves the create/read/control endpoints.
type DebateHandler struct {
	orch   *orchestrator.Orchestrator
	store  *store.Store
	logger *slog.Logger
}

func NewDebateHandler(orch *orchestrator.Orchestrator, st *store.Store, logger *slog.Logger) *DebateHandler {
	return &DebateHandler{orch: orch, store: st, logger: logger}
}

type createDebateRequest struct {
	Topic       string   `json:"topic"`
	Turns       int      `json:"turns"`
	Format      string   `json:"format"`
	CustomRules []string `json:"customRules"`
}

func (req createDebateRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Topic, validation.Required, validation.Length(10, 500)),
		validation.Field(&req.Turns, validation.Required, validation.In(2, 4, 6, 8, 10)),
		validation.Field(&req.Format, validation.In(
			string(debate.FormatStandard),
			string(debate.FormatOxford),
			string(debate.FormatLincolnDouglas),
		)),
		validation.Field(&req.CustomRules, validation.Length(0, 5)),
	)
}

// CreateDebate handles POST /debate.
func (h *DebateHandler) CreateDebate(w http.ResponseWriter, r *http.Request) {
	var req createDebateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := debate.Format(req.Format)
	if req.Format == "" {
		format = debate.FormatStandard
	}
	session, err := h.orch.Create(r.Context(), orchestrator.CreateRequest{
		Topic:       req.Topic,
		TurnCount:   req.Turns,
		Format:      format,
		CustomRules: req.CustomRules,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, map[string]any{
		"debateId": session.ID,
		"session":  session.Public(),
	})
}

// GetDebate handles GET /debate/{id}.
func (h *DebateHandler) GetDebate(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	session, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, session.Public())
}

// StartEngine handles POST /debate/{id}/engine.
func (h *DebateHandler) StartEngine(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	if err := h.orch.Start(r.Context(), id); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusAccepted, map[string]any{
		"debateId": id,
		"status":   "started",
	})
}

type controlRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (req controlRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Action, validation.Required, validation.In("pause", "resume", "end")),
		validation.Field(&req.Reason, validation.Length(0, 200)),
	)
}

// ControlEngine handles POST /debate/{id}/engine/control.
func (h *DebateHandler) ControlEngine(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	var req controlRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var err error
	switch req.Action {
	case "pause":
		err = h.orch.Pause(r.Context(), id)
	case "resume":
		err = h.orch.Resume(r.Context(), id)
	case "end":
		err = h.orch.End(r.Context(), id, req.Reason)
	}
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"debateId": id,
		"action":   req.Action,
	})
}

// debateID extracts and validates the {id} path segment, writing a 400 on
// malformed ids so they never reach the store.
func debateID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !debate.ValidDebateID(id) {
		httputil.RespondError(w, http.StatusBadRequest, "malformed debate id")
		return "", false
	}
	return id, true
}

// respondDomainError maps domain errors onto the wire. Safety blocks use
// the dedicated blocked shape instead of a problem document.
func respondDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var blocked *domain.BlockedError
	if errors.As(err, &blocked) {
		httputil.RespondJSON(w, blocked.StatusCode(), map[string]any{
			"blocked":     true,
			"blockReason": blocked.Reason,
			"errors":      blocked.Errors,
		})
		return
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		httputil.RespondErrorWithExtras(w, validationErr.StatusCode(), validationErr.Message, map[string]any{
			"errors": validationErr.Errors,
		})
		return
	}
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "debate not found")
	case errors.Is(err, domain.ErrAlreadyRunning):
		httputil.RespondError(w, http.StatusConflict, "debate is already running")
	case errors.Is(err, domain.ErrIllegalTransition):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
