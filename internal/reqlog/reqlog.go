// reqlog.go -- Request-scoped logging helpers.
//
// Wraps slog with automatic extraction of request context (IP, user agent,
// method, path, request id) so handlers don't repeat these fields on every call.
package reqlog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Attrs returns standard request-scoped attributes for logging.
// request_id is present only when chi's RequestID middleware ran.
func Attrs(r *http.Request) []any {
	attrs := []any{
		"ip", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"method", r.Method,
		"path", r.URL.Path,
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	return attrs
}

func Debug(r *http.Request, msg string, args ...any) {
	slog.DebugContext(r.Context(), msg, append(Attrs(r), args...)...)
}

func Info(r *http.Request, msg string, args ...any) {
	slog.InfoContext(r.Context(), msg, append(Attrs(r), args...)...)
}

func Warn(r *http.Request, msg string, args ...any) {
	slog.WarnContext(r.Context(), msg, append(Attrs(r), args...)...)
}

func Error(r *http.Request, msg string, args ...any) {
	slog.ErrorContext(r.Context(), msg, append(Attrs(r), args...)...)
}
