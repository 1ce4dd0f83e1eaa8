package handler

import "net/http"

// Handlers bundles everything the router mounts.
type Handlers struct {
	Debate  *DebateHandler
	Events  *EventsHandler
	Summary *SummaryHandler
	Judge   *JudgeHandler
	Share   *ShareHandler
	Health  *HealthHandler
}

// NewRouter mounts the public surface on a stdlib mux using method
// patterns. Middleware (recovery, CORS) wraps the returned handler in main.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health.Health)

	mux.HandleFunc("POST /debate", h.Debate.CreateDebate)
	mux.HandleFunc("GET /debate/{id}", h.Debate.GetDebate)
	mux.HandleFunc("POST /debate/{id}/engine", h.Debate.StartEngine)
	mux.HandleFunc("POST /debate/{id}/engine/control", h.Debate.ControlEngine)

	mux.HandleFunc("GET /debate/{id}/events", h.Events.Subscribe)
	mux.HandleFunc("GET /debate/{id}/summary", h.Summary.GetSummary)
	mux.HandleFunc("GET /debate/{id}/judge", h.Judge.GetJudgeAnalysis)

	mux.HandleFunc("GET /debate/{id}/share", h.Share.GetShareCode)
	mux.HandleFunc("POST /debate/{id}/share", h.Share.CreateShareCode)
	mux.HandleFunc("GET /s/{code}", h.Share.Resolve)

	return mux
}
