package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/uploadq/internal/api/shared"
)

// NewTraceMiddleware returns middleware that adds a trace ID to the request
// context. It should be applied early in the chain so every handler and
// error response can use the trace ID.
func NewTraceMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())

			logger.DebugContext(ctx, "request started",
				slog.String("trace_id", shared.GetTraceID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
