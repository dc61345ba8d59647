// stores.go
//
// Shared in-memory doubles for the Postgres store and the Redis counter.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MGallo-Code/scanlog/internal/store"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MockStore implements the user and scan store interfaces for tests.

// Always stateful...Users and Scans behave like the real tables.
// Use *Err fields to inject errors for specific operations.
// Errors mirror pgx: missing rows are pgx.ErrNoRows, duplicate email is a 23505 *pgconn.PgError.
type MockStore struct {
	// Error injection...zero value means no error
	CreateUserErr     error
	GetUserByEmailErr error
	GetUserByIDErr    error
	CreateScanErr     error
	ListScansErr      error
	CountScansErr     error
	HealthErr         error

	Users map[string]*store.User // keyed by email
	Scans []store.Scan

	seq int // orders CreatedAt deterministically
	mu  sync.Mutex
}

// NewMockStore returns a MockStore seeded with the given users, indexed by email.
func NewMockStore(users ...*store.User) *MockStore {
	ms := &MockStore{Users: make(map[string]*store.User)}
	for _, u := range users {
		ms.Users[u.Email] = u
	}
	return ms
}

func (m *MockStore) CheckHealth(context.Context) error { return m.HealthErr }

// stamp returns a strictly increasing timestamp. Caller holds mu.
func (m *MockStore) stamp() time.Time {
	m.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Millisecond)
}

func (m *MockStore) CreateUser(_ context.Context, id uuid.UUID, name, email, passwordHash string) (*store.User, error) {
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Users == nil {
		m.Users = make(map[string]*store.User)
	}
	if _, exists := m.Users[email]; exists {
		return nil, &pgconn.PgError{Code: store.UniqueViolation, ConstraintName: "users_email_key"}
	}
	u := &store.User{ID: id, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: m.stamp()}
	m.Users[email] = u
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	if m.GetUserByEmailErr != nil {
		return nil, m.GetUserByEmailErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetUserByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	if m.GetUserByIDErr != nil {
		return nil, m.GetUserByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *MockStore) CreateScan(_ context.Context, id, userID uuid.UUID, content string, scanType store.ScanType) (*store.Scan, error) {
	if m.CreateScanErr != nil {
		return nil, m.CreateScanErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := store.Scan{ID: id, UserID: userID, Content: content, Type: scanType, CreatedAt: m.stamp()}
	m.Scans = append(m.Scans, sc)
	return &sc, nil
}

// ListScansByUser returns userID's scans newest first, paged like the SQL query.
func (m *MockStore) ListScansByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]store.Scan, error) {
	if m.ListScansErr != nil {
		return nil, m.ListScansErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var own []store.Scan
	for _, sc := range m.Scans {
		if sc.UserID == userID {
			own = append(own, sc)
		}
	}
	slices.SortFunc(own, func(a, b store.Scan) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if offset >= len(own) {
		return []store.Scan{}, nil
	}
	return own[offset:min(offset+limit, len(own))], nil
}

func (m *MockStore) CountScansByUser(_ context.Context, userID uuid.UUID) (int, error) {
	if m.CountScansErr != nil {
		return 0, m.CountScansErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sc := range m.Scans {
		if sc.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) CountScansByType(_ context.Context, userID uuid.UUID) (map[store.ScanType]int, error) {
	if m.CountScansErr != nil {
		return nil, m.CountScansErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[store.ScanType]int)
	for _, sc := range m.Scans {
		if sc.UserID == userID {
			counts[sc.Type]++
		}
	}
	return counts, nil
}

// MockCounter implements the rate limiter's counter cache for tests.
// Keys expire against a manual clock; call Advance to move time forward.
// Expire has NX semantics like RedisCounter. TTL returns -2 (missing) or -1 (no TTL).
// Use *Err fields to inject errors for specific operations.
type MockCounter struct {
	GetErr    error
	IncrErr   error
	DecrErr   error
	ExpireErr error
	TTLErr    error
	HealthErr error

	now     time.Time
	entries map[string]*counterEntry
	mu      sync.Mutex
}

type counterEntry struct {
	value     int64
	expiresAt time.Time // zero means no TTL
}

// NewMockCounter returns an empty counter with its clock at a fixed instant.
func NewMockCounter() *MockCounter {
	return &MockCounter{
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		entries: make(map[string]*counterEntry),
	}
}

// Now returns the mock clock.
func (m *MockCounter) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by d.
func (m *MockCounter) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Value returns the raw stored value, ignoring expiry. For assertions only.
func (m *MockCounter) Value(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.value
	}
	return 0
}

// live returns the entry for key, dropping it if expired. Caller holds mu.
func (m *MockCounter) live(key string) (*counterEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !m.now.Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func (m *MockCounter) CheckHealth(context.Context) error { return m.HealthErr }

func (m *MockCounter) Get(_ context.Context, key string) (int64, bool, error) {
	if m.GetErr != nil {
		return 0, false, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return 0, false, nil
	}
	return e.value, true, nil
}

func (m *MockCounter) Incr(_ context.Context, key string) (int64, error) {
	return m.add(key, 1, m.IncrErr)
}

func (m *MockCounter) Decr(_ context.Context, key string) (int64, error) {
	return m.add(key, -1, m.DecrErr)
}

func (m *MockCounter) add(key string, delta int64, injected error) (int64, error) {
	if injected != nil {
		return 0, injected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]*counterEntry)
	}
	e, ok := m.live(key)
	if !ok {
		e = &counterEntry{}
		m.entries[key] = e
	}
	e.value += delta
	return e.value, nil
}

func (m *MockCounter) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if m.ExpireErr != nil {
		return false, m.ExpireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || !e.expiresAt.IsZero() {
		return false, nil
	}
	e.expiresAt = m.now.Add(ttl)
	return true, nil
}

func (m *MockCounter) TTL(_ context.Context, key string) (time.Duration, error) {
	if m.TTLErr != nil {
		return 0, m.TTLErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return -2, nil
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(m.now), nil
}
