package handler

import (
	"log/slog"
	"net/http"

	"rostra/internal/httputil"
	"rostra/internal/sharecode"
	"rostra/internal/store"
)

// ShareHandler issues and resolves short share codes.
type ShareHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewShareHandler(st *store.Store, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{store: st, logger: logger}
}

// CreateShareCode handles POST /debate/{id}/share. Repeated calls for the
// same debate return the code already issued.
func (h *ShareHandler) CreateShareCode(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	session, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	if code, err := h.store.GetDebateShareCode(r.Context(), id); err == nil {
		httputil.RespondJSON(w, http.StatusOK, shareResponse(id, code))
		return
	}

	code, err := sharecode.New()
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	ttl := store.SessionTTL(session)
	if err := h.store.PutShareCode(r.Context(), code, id, ttl); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if err := h.store.PutDebateShareCode(r.Context(), id, code, ttl); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, shareResponse(id, code))
}

// GetShareCode handles GET /debate/{id}/share.
func (h *ShareHandler) GetShareCode(w http.ResponseWriter, r *http.Request) {
	id, ok := debateID(w, r)
	if !ok {
		return
	}
	code, err := h.store.GetDebateShareCode(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, shareResponse(id, code))
}

// Resolve handles GET /s/{code} with a redirect to the canonical debate
// URL.
func (h *ShareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !sharecode.Valid(code) {
		httputil.RespondError(w, http.StatusBadRequest, "malformed share code")
		return
	}
	id, err := h.store.GetShareCode(r.Context(), code)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	http.Redirect(w, r, "/debate/"+id, http.StatusFound)
}

func shareResponse(debateID, code string) map[string]any {
	return map[string]any{
		"debateId":  debateID,
		"shareCode": code,
		"shareUrl":  "/s/" + code,
	}
}
