// handler_test.go

// unit tests for Create, History and Stats handlers.
package scans

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MGallo-Code/scanlog/internal/auth"
	"github.com/MGallo-Code/scanlog/internal/ratelimit"
	"github.com/MGallo-Code/scanlog/internal/store"
	"github.com/MGallo-Code/scanlog/internal/testutil"
	"github.com/gofrs/uuid/v5"
)

// --- Helpers ---

type fixture struct {
	h      *ScanHandler
	ms     *testutil.MockStore
	mc     *testutil.MockCounter
	rl     *ratelimit.Limiter
	userID uuid.UUID
}

func newFixture() *fixture {
	ms := testutil.NewMockStore()
	mc := testutil.NewMockCounter()
	rl := ratelimit.New(mc, ratelimit.Policy{Limit: 5, Window: 24 * time.Hour}, ratelimit.WithClock(mc.Now))
	return &fixture{
		h:      &ScanHandler{PS: ms, RL: rl},
		ms:     ms,
		mc:     mc,
		rl:     rl,
		userID: uuid.Must(uuid.NewV7()),
	}
}

// do runs handler as f.userID.
func (f *fixture) do(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r = r.WithContext(auth.ContextWithUserID(r.Context(), f.userID))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func (f *fixture) seed(t *testing.T, n int, st store.ScanType) {
	t.Helper()
	for i := range n {
		id := uuid.Must(uuid.NewV7())
		if _, err := f.ms.CreateScan(t.Context(), id, f.userID, "seed-"+string(st)+"-"+string(rune('a'+i)), st); err != nil {
			t.Fatalf("seeding scan: %v", err)
		}
	}
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
}

// assertError checks status and message of a JSON error response.
func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, expectedMsg string) map[string]any {
	t.Helper()
	if w.Code != status {
		t.Errorf("status: expected %d, got %d", status, w.Code)
	}
	var body map[string]any
	decodeJSON(t, w, &body)
	if body["error"] != expectedMsg {
		t.Errorf("message: expected %q, got %v", expectedMsg, body["error"])
	}
	return body
}

// --- Create ---

func TestCreate(t *testing.T) {
	t.Run("stores scan with upper-cased type", func(t *testing.T) {
		f := newFixture()
		w := f.do(f.h.Create, http.MethodPost, "/scans", `{"content":"https://example.com","type":"url"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("status: expected 201, got %d: %s", w.Code, w.Body.String())
		}
		var resp ScanResponse
		decodeJSON(t, w, &resp)
		if resp.Type != store.ScanTypeURL || resp.Content != "https://example.com" {
			t.Errorf("unexpected response: %+v", resp)
		}
		if len(f.ms.Scans) != 1 || f.ms.Scans[0].UserID != f.userID {
			t.Errorf("scan not stored for user: %+v", f.ms.Scans)
		}
	})

	required := []string{
		`{"type":"URL"}`,
		`{"content":"x"}`,
		`{"content":"   ","type":"URL"}`,
		`{}`,
	}
	for _, body := range required {
		t.Run("missing fields "+body, func(t *testing.T) {
			f := newFixture()
			assertError(t, f.do(f.h.Create, http.MethodPost, "/scans", body), http.StatusBadRequest, "Content and type are required")
			if len(f.ms.Scans) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}

	t.Run("unknown type lists valid types", func(t *testing.T) {
		f := newFixture()
		body := assertError(t, f.do(f.h.Create, http.MethodPost, "/scans", `{"content":"x","type":"barcode"}`), http.StatusBadRequest, "Invalid scan type")
		valid, ok := body["validTypes"].([]any)
		if !ok || len(valid) != len(store.ScanTypes) {
			t.Fatalf("validTypes: expected %d entries, got %v", len(store.ScanTypes), body["validTypes"])
		}
		if valid[0] != "URL" {
			t.Errorf("validTypes[0]: expected URL, got %v", valid[0])
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		f := newFixture()
		assertError(t, f.do(f.h.Create, http.MethodPost, "/scans", `{"content":`), http.StatusBadRequest, "Invalid request body")
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		f := newFixture()
		f.ms.CreateScanErr = errors.New("connection reset")
		assertError(t, f.do(f.h.Create, http.MethodPost, "/scans", `{"content":"x","type":"TEXT"}`), http.StatusInternalServerError, "Internal server error")
	})

	t.Run("missing identity is 401", func(t *testing.T) {
		f := newFixture()
		w := httptest.NewRecorder()
		f.h.Create(w, httptest.NewRequest(http.MethodPost, "/scans", strings.NewReader(`{"content":"x","type":"TEXT"}`)))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status: expected 401, got %d", w.Code)
		}
	})
}

// --- History ---

func TestHistory(t *testing.T) {
	t.Run("default page is newest first", func(t *testing.T) {
		f := newFixture()
		f.seed(t, 12, store.ScanTypeText)
		// Another user's scans never appear.
		other := uuid.Must(uuid.NewV7())
		f.ms.CreateScan(t.Context(), uuid.Must(uuid.NewV7()), other, "foreign", store.ScanTypeURL)

		w := f.do(f.h.History, http.MethodGet, "/scans/history", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", w.Code)
		}
		var resp historyResponse
		decodeJSON(t, w, &resp)

		if len(resp.Scans) != 10 {
			t.Fatalf("expected 10 scans, got %d", len(resp.Scans))
		}
		for i := 1; i < len(resp.Scans); i++ {
			if resp.Scans[i].CreatedAt.After(resp.Scans[i-1].CreatedAt) {
				t.Fatalf("scans not newest first at index %d", i)
			}
		}
		want := Pagination{Total: 12, Page: 1, Limit: 10, TotalPages: 2}
		if resp.Pagination != want {
			t.Errorf("pagination: expected %+v, got %+v", want, resp.Pagination)
		}
	})

	t.Run("second page holds the remainder", func(t *testing.T) {
		f := newFixture()
		f.seed(t, 12, store.ScanTypeText)
		var resp historyResponse
		decodeJSON(t, f.do(f.h.History, http.MethodGet, "/scans/history?page=2&limit=10", ""), &resp)
		if len(resp.Scans) != 2 || resp.Pagination.Page != 2 {
			t.Errorf("expected 2 scans on page 2, got %d (page %d)", len(resp.Scans), resp.Pagination.Page)
		}
	})

	queries := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"?page=0&limit=0", 1, 10},
		{"?page=-2&limit=abc", 1, 10},
		{"?page=x&limit=5", 1, 5},
		{"?limit=1000", 1, 100},
		{"?page=9223372036854775807", math.MaxInt, 10},
	}
	for _, tt := range queries {
		t.Run("params "+tt.query, func(t *testing.T) {
			f := newFixture()
			var resp historyResponse
			decodeJSON(t, f.do(f.h.History, http.MethodGet, "/scans/history"+tt.query, ""), &resp)
			if resp.Pagination.Page != tt.wantPage || resp.Pagination.Limit != tt.wantLimit {
				t.Errorf("expected page=%d limit=%d, got %+v", tt.wantPage, tt.wantLimit, resp.Pagination)
			}
		})
	}

	t.Run("page past the end is empty", func(t *testing.T) {
		f := newFixture()
		f.seed(t, 3, store.ScanTypeText)
		for _, page := range []string{"2", "9223372036854775807"} {
			w := f.do(f.h.History, http.MethodGet, "/scans/history?page="+page, "")
			if w.Code != http.StatusOK {
				t.Fatalf("page %s: expected 200, got %d: %s", page, w.Code, w.Body.String())
			}
			var resp historyResponse
			decodeJSON(t, w, &resp)
			if len(resp.Scans) != 0 || resp.Pagination.Total != 3 {
				t.Errorf("page %s: expected no scans of 3, got %d of %d", page, len(resp.Scans), resp.Pagination.Total)
			}
		}
	})

	t.Run("empty history is an empty array", func(t *testing.T) {
		f := newFixture()
		w := f.do(f.h.History, http.MethodGet, "/scans/history", "")
		if !strings.Contains(w.Body.String(), `"scans":[]`) {
			t.Errorf("expected empty scans array, got %s", w.Body.String())
		}
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		f := newFixture()
		f.ms.ListScansErr = errors.New("timeout")
		assertError(t, f.do(f.h.History, http.MethodGet, "/scans/history", ""), http.StatusInternalServerError, "Internal server error")
	})
}

// --- Stats ---

func TestStats(t *testing.T) {
	t.Run("reports totals and quota without consuming it", func(t *testing.T) {
		f := newFixture()
		f.seed(t, 2, store.ScanTypeURL)
		f.seed(t, 1, store.ScanTypeWiFi)
		for range 2 {
			if _, err := f.rl.Allow(t.Context(), f.userID); err != nil {
				t.Fatalf("Allow: %v", err)
			}
		}
		f.mc.Advance(time.Hour)

		for range 2 {
			var resp statsResponse
			decodeJSON(t, f.do(f.h.Stats, http.MethodGet, "/scans/stats", ""), &resp)

			if resp.TotalScans != 3 {
				t.Errorf("totalScans: expected 3, got %d", resp.TotalScans)
			}
			if resp.ScanTypes[store.ScanTypeURL] != 2 || resp.ScanTypes[store.ScanTypeWiFi] != 1 {
				t.Errorf("scanTypes: got %v", resp.ScanTypes)
			}
			if resp.RemainingToday != 3 || resp.RateLimit != 5 {
				t.Errorf("quota: expected remaining 3 of 5, got %d of %d", resp.RemainingToday, resp.RateLimit)
			}
			if resp.ResetTime != int64((23 * time.Hour).Seconds()) {
				t.Errorf("resetTime: expected %d, got %d", int64((23 * time.Hour).Seconds()), resp.ResetTime)
			}
		}
		if got := f.mc.Value(ratelimit.Key(f.userID)); got != 2 {
			t.Errorf("stats must not increment the counter, got %d", got)
		}
	})

	t.Run("fresh user has full quota and full window", func(t *testing.T) {
		f := newFixture()
		var resp statsResponse
		decodeJSON(t, f.do(f.h.Stats, http.MethodGet, "/scans/stats", ""), &resp)
		if resp.RemainingToday != 5 || resp.ResetTime != 86400 || resp.TotalScans != 0 {
			t.Errorf("unexpected stats: %+v", resp)
		}
	})

	t.Run("cache failure returns 500", func(t *testing.T) {
		f := newFixture()
		f.mc.GetErr = errors.New("redis down")
		w := f.do(f.h.Stats, http.MethodGet, "/scans/stats", "")
		body := assertError(t, w, http.StatusInternalServerError, "Internal server error")
		if body["code"] != "cache_error" {
			t.Errorf("code: expected cache_error, got %v", body["code"])
		}
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		f := newFixture()
		f.ms.CountScansErr = errors.New("timeout")
		body := assertError(t, f.do(f.h.Stats, http.MethodGet, "/scans/stats", ""), http.StatusInternalServerError, "Internal server error")
		if body["code"] != "store_error" {
			t.Errorf("code: expected store_error, got %v", body["code"])
		}
	})
}
