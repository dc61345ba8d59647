// apperr.go -- Error classification for HTTP responses.
//
// Handlers translate adapter errors into *Error with a Kind; the Responder is the
// only place that turns a Kind into a status code and JSON body.
package apperr

import (
	"fmt"
	"maps"
	"net/http"
)

// Kind is the error discriminant. Status and default code derive from it.
type Kind int

const (
	Unknown Kind = iota
	Validation
	Authentication
	Authorization
	NotFound
	Conflict
	RateLimit
	Store
	Cache
)

// Status returns the HTTP status for k. Conflict maps to 400 to match client expectations.
func (k Kind) Status() int {
	switch k {
	case Validation, Conflict:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case RateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation_error"
	case Authentication:
		return "unauthorized"
	case Authorization:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case RateLimit:
		return "rate_limit_exceeded"
	case Store:
		return "store_error"
	case Cache:
		return "cache_error"
	default:
		return "internal_error"
	}
}

// Error is a classified failure. Message and Fields are public; Err is the internal cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.code(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// With returns a copy of e carrying an extra public body field.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Fields = maps.Clone(e.Fields)
	if cp.Fields == nil {
		cp.Fields = make(map[string]any, 1)
	}
	cp.Fields[key] = value
	return &cp
}

// code returns Code, falling back to the Kind default.
func (e *Error) code() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

// --- Constructors ---

func NewValidation(message string) *Error {
	return &Error{Kind: Validation, Message: message}
}

// NewAuthentication builds a 401 with a specific code (missing_credentials, token_expired, ...).
func NewAuthentication(code, message string) *Error {
	return &Error{Kind: Authentication, Code: code, Message: message}
}

func NewConflict(code, message string) *Error {
	return &Error{Kind: Conflict, Code: code, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: NotFound, Message: message}
}

func NewRateLimit(message string) *Error {
	return &Error{Kind: RateLimit, Message: message}
}

// NewStore wraps a database failure.
func NewStore(err error) *Error {
	return &Error{Kind: Store, Message: "Internal server error", Err: err}
}

// NewCache wraps a Redis failure.
func NewCache(err error) *Error {
	return &Error{Kind: Cache, Message: "Internal server error", Err: err}
}

func NewInternal(err error) *Error {
	return &Error{Kind: Unknown, Message: "Internal server error", Err: err}
}
