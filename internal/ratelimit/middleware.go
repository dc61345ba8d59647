// middleware.go -- HTTP enforcement of the per-user quota.
package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/MGallo-Code/scanlog/internal/apperr"
	"github.com/MGallo-Code/scanlog/internal/auth"
	"github.com/MGallo-Code/scanlog/internal/reqlog"
)

// Middleware enforces the quota for the authenticated user. Must run after auth.RequireAuth.
// Cache failures fail open: the request proceeds without quota headers.
func (l *Limiter) Middleware(errs apperr.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				errs.Write(w, r, apperr.NewAuthentication("missing_credentials", "Authentication required"))
				return
			}

			d, err := l.Allow(r.Context(), userID)
			if err != nil {
				reqlog.Warn(r, "rate limiter unavailable, failing open", "user_id", userID, "error", err)
				l.metrics.observe(OutcomeFailOpen)
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				l.metrics.observe(OutcomeRejected)
				retry := d.ResetSeconds()
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				errs.Write(w, r, apperr.NewRateLimit("Rate limit exceeded").
					With("limit", d.Limit).
					With("remaining", 0).
					With("resetTime", retry).
					With("retryAfter", retry))
				return
			}

			l.metrics.observe(OutcomeAllowed)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			next.ServeHTTP(w, r)
		})
	}
}
