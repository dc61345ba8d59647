// health.go -- Health check handler for GET /health.
package health

import (
	"context"
	"net/http"

	"github.com/MGallo-Code/scanlog/internal/apperr"
	"github.com/MGallo-Code/scanlog/internal/reqlog"
)

// Checker pings one dependency.
// Satisfied by *store.PostgresStore and *store.RedisCounter.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// Handler reports per-dependency status.
type Handler struct {
	Postgres Checker
	Redis    Checker
}

type status struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// ServeHTTP pings Postgres and Redis. 200 if both are healthy, 503 if either is down.
// Redis down still degrades the service (rate limiting fails open), so it counts.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := status{Postgres: "ok", Redis: "ok"}

	if err := h.Postgres.CheckHealth(r.Context()); err != nil {
		reqlog.Error(r, "postgres health check failed", "error", err)
		st.Postgres = "error"
	}
	if err := h.Redis.CheckHealth(r.Context()); err != nil {
		reqlog.Error(r, "redis health check failed", "error", err)
		st.Redis = "error"
	}

	code := http.StatusOK
	if st.Postgres != "ok" || st.Redis != "ok" {
		code = http.StatusServiceUnavailable
	}
	apperr.WriteJSON(w, code, st)
}
