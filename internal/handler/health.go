package handler

import (
	"net/http"

	"rostra/internal/httputil"
	"rostra/internal/llm"
)

// HealthHandler reports process liveness and provider configuration.
type HealthHandler struct {
	registry *llm.Registry
}

func NewHealthHandler(registry *llm.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	providers := map[string]bool{}
	for _, p := range h.registry.All() {
		providers[string(p.Type())] = p.IsConfigured()
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": providers,
	})
}
