// Package middleware contains HTTP middleware applied to the API router.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/maestro-api/maestro/internal/api/shared"
)

// TraceMiddleware assigns each request a trace ID, stores it in the request
// context, and echoes it in the X-Trace-ID response header so clients can
// quote it when reporting failures. It runs early in the chain; error
// responses and log lines downstream pick the ID up from the context.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		w.Header().Set("X-Trace-ID", traceID)

		slog.Debug("request started",
			slog.String("trace_id", traceID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
