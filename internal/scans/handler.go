// handler.go -- HTTP handlers for /scans endpoints.
//
// All routes sit behind auth.RequireAuth; POST /scans is additionally rate limited.
package scans

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/scanlog/internal/apperr"
	"github.com/MGallo-Code/scanlog/internal/auth"
	"github.com/MGallo-Code/scanlog/internal/ratelimit"
	"github.com/MGallo-Code/scanlog/internal/reqlog"
	"github.com/MGallo-Code/scanlog/internal/store"
	"github.com/gofrs/uuid/v5"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// Store defines scan persistence needed by the handlers.
// Satisfied by *store.PostgresStore.
type Store interface {
	CreateScan(ctx context.Context, id, userID uuid.UUID, content string, scanType store.ScanType) (*store.Scan, error)

	// ListScansByUser returns scans newest first.
	ListScansByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.Scan, error)

	CountScansByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// CountScansByType omits types with no scans.
	CountScansByType(ctx context.Context, userID uuid.UUID) (map[store.ScanType]int, error)
}

// Quota reports a user's rate limit state without consuming it.
// Satisfied by *ratelimit.Limiter.
type Quota interface {
	Status(ctx context.Context, userID uuid.UUID) (ratelimit.Decision, error)
}

// ScanHandler holds dependencies for /scans handlers.
type ScanHandler struct {
	PS   Store
	RL   Quota
	Errs apperr.Responder
}

// ScanResponse is the public shape of a scan.
type ScanResponse struct {
	ID        uuid.UUID      `json:"id"`
	Content   string         `json:"content"`
	Type      store.ScanType `json:"type"`
	CreatedAt time.Time      `json:"createdAt"`
}

func newScanResponse(s *store.Scan) ScanResponse {
	return ScanResponse{ID: s.ID, Content: s.Content, Type: s.Type, CreatedAt: s.CreatedAt}
}

// Pagination describes a page of history.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type historyResponse struct {
	Scans      []ScanResponse `json:"scans"`
	Pagination Pagination     `json:"pagination"`
}

type statsResponse struct {
	TotalScans     int                    `json:"totalScans"`
	ScanTypes      map[store.ScanType]int `json:"scanTypes"`
	RemainingToday int64                  `json:"remainingToday"`
	RateLimit      int64                  `json:"rateLimit"`
	ResetTime      int64                  `json:"resetTime"`
}

// userID reads the identity set by RequireAuth. Missing means a routing bug; respond 401.
func (h *ScanHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.Errs.Write(w, r, apperr.NewAuthentication(auth.CodeMissingCredentials, "Authentication required"))
	}
	return id, ok
}

// Create handles POST /scans. Type is case-insensitive and stored upper-case.
func (h *ScanHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var input struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		reqlog.Warn(r, "failed to decode scan input", "error", err)
		h.Errs.Write(w, r, apperr.NewValidation("Invalid request body"))
		return
	}
	if strings.TrimSpace(input.Content) == "" || strings.TrimSpace(input.Type) == "" {
		h.Errs.Write(w, r, apperr.NewValidation("Content and type are required"))
		return
	}
	scanType, ok := store.ParseScanType(input.Type)
	if !ok {
		h.Errs.Write(w, r, apperr.NewValidation("Invalid scan type").With("validTypes", store.ScanTypes))
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		h.Errs.Write(w, r, apperr.NewInternal(err))
		return
	}
	scan, err := h.PS.CreateScan(r.Context(), id, userID, input.Content, scanType)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewStore(err))
		return
	}

	reqlog.Debug(r, "scan recorded", "user_id", userID, "scan_id", scan.ID, "type", scan.Type)
	apperr.WriteJSON(w, http.StatusCreated, newScanResponse(scan))
}

// History handles GET /scans/history?page=&limit=. Newest first.
func (h *ScanHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", defaultPage)
	limit := queryInt(r, "limit", defaultLimit)
	limit = min(limit, maxLimit)

	total, err := h.PS.CountScansByUser(r.Context(), userID)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewStore(err))
		return
	}
	// Pages past the end are empty. Compared by division so the offset never overflows.
	var scans []store.Scan
	if page-1 <= total/limit {
		scans, err = h.PS.ListScansByUser(r.Context(), userID, limit, (page-1)*limit)
		if err != nil {
			h.Errs.Write(w, r, apperr.NewStore(err))
			return
		}
	}

	resp := historyResponse{
		Scans: make([]ScanResponse, 0, len(scans)),
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
	}
	for i := range scans {
		resp.Scans = append(resp.Scans, newScanResponse(&scans[i]))
	}
	apperr.WriteJSON(w, http.StatusOK, resp)
}

// Stats handles GET /scans/stats. Reads quota without consuming it.
func (h *ScanHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	total, err := h.PS.CountScansByUser(r.Context(), userID)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewStore(err))
		return
	}
	byType, err := h.PS.CountScansByType(r.Context(), userID)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewStore(err))
		return
	}
	quota, err := h.RL.Status(r.Context(), userID)
	if err != nil {
		h.Errs.Write(w, r, apperr.NewCache(err))
		return
	}

	apperr.WriteJSON(w, http.StatusOK, statsResponse{
		TotalScans:     total,
		ScanTypes:      byType,
		RemainingToday: quota.Remaining,
		RateLimit:      quota.Limit,
		ResetTime:      quota.ResetSeconds(),
	})
}

// queryInt parses a positive int query param, def if missing or invalid.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}
