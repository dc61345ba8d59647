// responder.go -- Single point of HTTP error rendering.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/MGallo-Code/scanlog/internal/reqlog"
)

// Responder renders errors as JSON. Debug adds the internal cause to 5xx bodies
// and must stay off in production.
type Responder struct {
	Debug bool
}

// Write classifies err and writes the response. Non-*Error values become Unknown 500.
func (rs Responder) Write(w http.ResponseWriter, r *http.Request, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = NewInternal(err)
	}

	status := ae.Kind.Status()
	body := make(map[string]any, len(ae.Fields)+3)
	for k, v := range ae.Fields {
		body[k] = v
	}
	body["error"] = ae.Message
	body["code"] = ae.code()

	switch {
	case status >= http.StatusInternalServerError:
		// Never leak cause text to clients outside debug mode.
		body["error"] = "Internal server error"
		if rs.Debug && ae.Err != nil {
			body["details"] = ae.Err.Error()
		}
		reqlog.Error(r, "request failed", "status", status, "code", ae.code(), "error", ae.Err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
		reqlog.Warn(r, "request rejected", "status", status, "code", ae.code())
	default:
		reqlog.Info(r, "request rejected", "status", status, "code", ae.code(), "message", ae.Message)
	}

	WriteJSON(w, status, body)
}

// Recoverer converts panics into an Unknown 500 through rs.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func (rs Responder) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			reqlog.Error(r, "panic recovered", "panic", rec, "stack", string(debug.Stack()))
			rs.Write(w, r, NewInternal(fmt.Errorf("panic: %v", rec)))
		}()
		next.ServeHTTP(w, r)
	})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
