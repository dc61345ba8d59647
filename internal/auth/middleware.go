// middleware.go

// Bearer token authentication middleware.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MGallo-Code/scanlog/internal/apperr"
	"github.com/MGallo-Code/scanlog/internal/reqlog"
	"github.com/MGallo-Code/scanlog/internal/token"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const userIDKey contextKey = "user_id"

// Gate failure codes. All are 401.
const (
	CodeMissingCredentials   = "missing_credentials"
	CodeMalformedCredentials = "malformed_credentials"
	CodeTokenExpired         = "token_expired"
	CodeInvalidToken         = "invalid_token"
	CodeUnknownSubject       = "unknown_subject"
)

// UserIDFromContext retrieves authenticated user's ID from context.
// Returns zero UUID and false if RequireAuth hasn't run.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// ContextWithUserID returns ctx carrying userID as the authenticated identity.
func ContextWithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequireAuth validates the bearer token and confirms its subject still exists.
// Injects user_id into context on success; 401 with a distinct code on each failure.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			reqlog.Warn(r, "require auth failed", "reason", CodeMissingCredentials)
			h.Errs.Write(w, r, apperr.NewAuthentication(CodeMissingCredentials, "No token provided"))
			return
		}

		fields := strings.Fields(header)
		if len(fields) != 2 || fields[0] != "Bearer" {
			reqlog.Warn(r, "require auth failed", "reason", CodeMalformedCredentials)
			h.Errs.Write(w, r, apperr.NewAuthentication(CodeMalformedCredentials, "Invalid token format"))
			return
		}

		userID, err := h.TS.Verify(fields[1])
		if err != nil {
			if errors.Is(err, token.ErrExpiredToken) {
				reqlog.Info(r, "require auth failed", "reason", CodeTokenExpired)
				h.Errs.Write(w, r, apperr.NewAuthentication(CodeTokenExpired, "Token expired"))
				return
			}
			reqlog.Warn(r, "require auth failed", "reason", CodeInvalidToken, "error", err)
			h.Errs.Write(w, r, apperr.NewAuthentication(CodeInvalidToken, "Invalid token"))
			return
		}

		// Tokens are not revoked server-side; a deleted user must still be rejected.
		if _, err := h.PS.GetUserByID(r.Context(), userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				reqlog.Warn(r, "require auth failed", "reason", CodeUnknownSubject, "user_id", userID)
				h.Errs.Write(w, r, apperr.NewAuthentication(CodeUnknownSubject, "User not found"))
				return
			}
			h.Errs.Write(w, r, apperr.NewStore(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}
