package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/materiel-backend/pkg/logger"
	"github.com/angelmondragon/materiel-backend/pkg/tracing"
)

// Logging attaches method, path and trace id to the request logger and
// emits one request.complete line per request. Server errors log at warn.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := map[string]any{"method": r.Method, "path": r.URL.Path}
			if traceID := tracing.TraceID(r.Context()); traceID != "" {
				fields["trace_id"] = traceID
			}
			ctx := logg.WithFields(r.Context(), fields)
			logg.Debug(ctx, "request.start")

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			began := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := responseStatus(ww)
			ctx = logg.WithFields(ctx, map[string]any{
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(began).Milliseconds(),
			})
			if status >= http.StatusInternalServerError {
				logg.Warn(ctx, "request.complete")
				return
			}
			logg.Info(ctx, "request.complete")
		})
	}
}

// responseStatus treats a handler that never wrote as 200.
func responseStatus(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
