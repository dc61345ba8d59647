// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable store for users and scans.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool, pings it, and returns a ready-to-use store.
// Call once at startup from main.go...the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a new user and returns the stored row (with DB-assigned created_at).
// Caller generates the UUID v7 and Argon2id hash BEFORE calling this.
// Returns raw pgx error, handler inspects it for unique violations (duplicate email).
func (s *PostgresStore) CreateUser(ctx context.Context, id uuid.UUID, name, email, passwordHash string) (*User, error) {
	u := User{ID: id, Name: name, Email: email, PasswordHash: passwordHash}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4) RETURNING created_at",
		id, name, email, passwordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by exact (case-sensitive) email.
// Returns pgx.ErrNoRows if no user matches.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1", email)
}

// GetUserByID fetches a user by primary key.
// Returns pgx.ErrNoRows if no user matches.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getUser(ctx, "SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1", id)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateScan inserts a scan record for userID and returns the stored row.
func (s *PostgresStore) CreateScan(ctx context.Context, id, userID uuid.UUID, content string, scanType ScanType) (*Scan, error) {
	sc := Scan{ID: id, UserID: userID, Content: content, Type: scanType}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO scans (id, user_id, content, type) VALUES ($1, $2, $3, $4) RETURNING created_at",
		id, userID, content, string(scanType),
	).Scan(&sc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting scan: %w", err)
	}
	return &sc, nil
}

// ListScansByUser returns one page of userID's scans, newest first.
func (s *PostgresStore) ListScansByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Scan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, content, type, created_at
		FROM scans
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}

	scans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Scan, error) {
		var sc Scan
		var t string
		err := row.Scan(&sc.ID, &sc.UserID, &sc.Content, &t, &sc.CreatedAt)
		sc.Type = ScanType(t)
		return sc, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading scans: %w", err)
	}
	return scans, nil
}

// CountScansByUser returns the total number of scans userID has logged.
func (s *PostgresStore) CountScansByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM scans WHERE user_id = $1", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting scans: %w", err)
	}
	return n, nil
}

// CountScansByType returns userID's scan counts grouped by type.
// Types with no scans are absent from the map.
func (s *PostgresStore) CountScansByType(ctx context.Context, userID uuid.UUID) (map[ScanType]int, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT type, COUNT(*) FROM scans WHERE user_id = $1 GROUP BY type", userID)
	if err != nil {
		return nil, fmt.Errorf("counting scans by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[ScanType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("reading scan counts: %w", err)
		}
		counts[ScanType(t)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading scan counts: %w", err)
	}
	return counts, nil
}
