// handler.go -- HTTP handlers for all /auth/* endpoints.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MGallo-Code/scanlog/internal/apperr"
	"github.com/MGallo-Code/scanlog/internal/reqlog"
	"github.com/MGallo-Code/scanlog/internal/store"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store defines database operations needed by auth handlers and RequireAuth.
// Satisfied by *store.PostgresStore. Defined at the consumer.
type Store interface {
	// CreateUser inserts a user. Duplicate email surfaces as a 23505 *pgconn.PgError.
	CreateUser(ctx context.Context, id uuid.UUID, name, email, passwordHash string) (*store.User, error)

	// GetUserByEmail fetches user by exact email. Returns pgx.ErrNoRows if absent.
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)

	// GetUserByID fetches user by id. Returns pgx.ErrNoRows if absent.
	GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)
}

// Tokens issues and verifies session tokens.
// Satisfied by *token.Service.
type Tokens interface {
	Issue(userID uuid.UUID) (string, error)
	Verify(token string) (uuid.UUID, error)
}

// dummyPasswordHash is a precomputed Argon2id hash for timing attack mitigation.
// When a user doesn't exist, verify against this so both paths take equal time (~100ms).
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=2$YWJjZGVmZ2hpamtsbW5vcA$kC6C6jqLzC0JLlJgXhHbKMhLLpVvLJLLQw/IqT9ZYPU"

// AuthHandler holds dependencies for all /auth/* HTTP handlers and middleware.
type AuthHandler struct {
	PS   Store
	TS   Tokens
	Errs apperr.Responder
}

// UserResponse is the public shape of a user. Never carries the password hash.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

type authResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

var errEmailTaken = apperr.NewConflict("email_taken", "Email already registered")

// invalidCredentials is identical for unknown email and wrong password.
var invalidCredentials = apperr.NewAuthentication("invalid_credentials", "Invalid credentials")

// Register handles POST /auth/register: name, email and password signup.
// Returns 201 with user and token, 400 for validation errors or taken email, 500 for server errors.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		reqlog.Warn(r, "failed to decode register input", "error", err)
		h.Errs.Write(w, r, apperr.NewValidation("Invalid request body"))
		return
	}

	name := strings.TrimSpace(input.Name)
	if name == "" || input.Email == "" || input.Password == "" {
		h.Errs.Write(w, r, apperr.NewValidation("Name, email and password are required"))
		return
	}
	if msg := ValidateName(name); msg != "" {
		h.Errs.Write(w, r, apperr.NewValidation(msg))
		return
	}
	if msg := ValidateEmail(input.Email); msg != "" {
		h.Errs.Write(w, r, apperr.NewValidation(msg))
		return
	}
	if msg := ValidatePassword(input.Password); msg != "" {
		h.Errs.Write(w, r, apperr.NewValidation(msg))
		return
	}

	// Fast path for the common duplicate; the unique index still decides races below.
	_, err := h.PS.GetUserByEmail(r.Context(), input.Email)
	switch {
	case err == nil:
		reqlog.Info(r, "registration attempted with existing email")
		h.Errs.Write(w, r, errEmailTaken)
		return
	case !errors.Is(err, pgx.ErrNoRows):
		h.Errs.Write(w, r, apperr.NewStore(err))
		return
	}

	hashedPassword, err := HashPassword(input.Password)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewInternal(err))
		return
	}
	userID, err := uuid.NewV7()
	if err != nil {
		h.Errs.Write(w, r, apperr.NewInternal(err))
		return
	}

	user, err := h.PS.CreateUser(r.Context(), userID, name, input.Email, hashedPassword)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == store.UniqueViolation {
			reqlog.Info(r, "registration lost race on existing email")
			h.Errs.Write(w, r, errEmailTaken)
			return
		}
		h.Errs.Write(w, r, apperr.NewStore(err))
		return
	}

	tok, err := h.TS.Issue(user.ID)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewInternal(err))
		return
	}

	reqlog.Info(r, "user registered", "user_id", user.ID)
	apperr.WriteJSON(w, http.StatusCreated, authResponse{User: newUserResponse(user), Token: tok})
}

// Login handles POST /auth/login: email and password authentication.
// Returns 200 with user and token, 401 for bad credentials, 500 for server errors.
// Argon2id dummy-hash equalises timing when account doesn't exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		reqlog.Warn(r, "failed to decode login input", "error", err)
		h.Errs.Write(w, r, apperr.NewValidation("Invalid request body"))
		return
	}
	if input.Email == "" || input.Password == "" {
		h.Errs.Write(w, r, apperr.NewValidation("Email and password are required"))
		return
	}

	user, err := h.PS.GetUserByEmail(r.Context(), input.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			h.Errs.Write(w, r, apperr.NewStore(err))
			return
		}
		VerifyPassword(input.Password, dummyPasswordHash)
		reqlog.Info(r, "login attempted with non-existent email")
		h.Errs.Write(w, r, invalidCredentials)
		return
	}

	valid, err := VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		reqlog.Error(r, "password verification failed", "user_id", user.ID, "error", err)
		h.Errs.Write(w, r, apperr.NewInternal(err))
		return
	}
	if !valid {
		reqlog.Info(r, "login attempted with incorrect password", "user_id", user.ID)
		h.Errs.Write(w, r, invalidCredentials)
		return
	}

	tok, err := h.TS.Issue(user.ID)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewInternal(err))
		return
	}

	reqlog.Info(r, "user logged in", "user_id", user.ID)
	apperr.WriteJSON(w, http.StatusOK, authResponse{User: newUserResponse(user), Token: tok})
}

// Verify handles GET /auth/verify. Reaching it means RequireAuth passed.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}
