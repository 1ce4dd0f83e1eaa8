package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"rostra/internal/httputil"
)

// Recovery turns a handler panic into a logged 500 problem response. A
// panicking SSE stream has usually written headers already; the RespondError
// then degrades to a superfluous-WriteHeader log line, which is acceptable.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("request handler panicked",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"debate_id", r.PathValue("id"),
						"stack", string(debug.Stack()),
					)
					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
