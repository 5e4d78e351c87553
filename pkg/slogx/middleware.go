package slogx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/canopyml/appgate/pkg/idx"
)

type proxiedKey struct{}

// MarkProxied tags the request so the access log entry for it is emitted at
// debug level. Proxied application traffic is high volume and the backends
// keep their own logs, so the gateway only records it when debugging.
func MarkProxied(ctx context.Context) {
	if flag, ok := ctx.Value(proxiedKey{}).(*bool); ok {
		*flag = true
	}
}

// HTTPMiddleware logs requests and attaches a contextual logger into request context.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			// Generate a request ID if not provided via X-Request-ID header
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = idx.New().String()
			}

			logger := base.With(
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			proxied := false
			ctx := WithContext(r.Context(), logger)
			ctx = context.WithValue(ctx, proxiedKey{}, &proxied)
			r = r.WithContext(ctx)

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			if proxied {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "http_request",
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so http.ResponseController can reach
// Hijack and Flush through the wrapper. WebSocket upgrades depend on this.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
