package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MGallo-Code/scanlog/internal/testutil"
)

func TestHealth(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name     string
		pgErr    error
		redisErr error
		wantCode int
		wantBody string
	}{
		{"all healthy", nil, nil, http.StatusOK, `{"postgres":"ok","redis":"ok"}`},
		{"postgres down", down, nil, http.StatusServiceUnavailable, `{"postgres":"error","redis":"ok"}`},
		{"redis down", nil, down, http.StatusServiceUnavailable, `{"postgres":"ok","redis":"error"}`},
		{"both down", down, down, http.StatusServiceUnavailable, `{"postgres":"error","redis":"error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := testutil.NewMockStore()
			ms.HealthErr = tt.pgErr
			mc := testutil.NewMockCounter()
			mc.HealthErr = tt.redisErr

			w := httptest.NewRecorder()
			(&Handler{Postgres: ms, Redis: mc}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status: expected %d, got %d", tt.wantCode, w.Code)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body: expected %s, got %s", tt.wantBody, got)
			}
		})
	}
}
