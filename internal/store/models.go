// models.go -- Shared domain types for the store package.
// Used by both Postgres (durable store) and Redis (counter cache).
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrCacheUnavailable wraps every Redis failure returned by RedisCounter.
// Callers use errors.Is to tell an infrastructure failure from a normal result.
var ErrCacheUnavailable = errors.New("cache unavailable")

// UniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const UniqueViolation = "23505"

// User represents a row in the users table.
// PasswordHash never leaves the store/auth boundary -- it has no JSON tag on purpose
// and handlers serialize users through their own response shape.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// ScanType is the kind of content a scan decoded.
type ScanType string

const (
	ScanTypeURL   ScanType = "URL"
	ScanTypeText  ScanType = "TEXT"
	ScanTypeEmail ScanType = "EMAIL"
	ScanTypePhone ScanType = "PHONE"
	ScanTypeWiFi  ScanType = "WIFI"
	ScanTypeVCard ScanType = "VCARD"
)

// ScanTypes lists every accepted ScanType, in display order.
var ScanTypes = []ScanType{
	ScanTypeURL, ScanTypeText, ScanTypeEmail, ScanTypePhone, ScanTypeWiFi, ScanTypeVCard,
}

// ParseScanType normalises s to upper case and reports whether it is a known type.
func ParseScanType(s string) (ScanType, bool) {
	t := ScanType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ScanTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Scan represents a row in the scans table.
type Scan struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Content   string
	Type      ScanType
	CreatedAt time.Time
}
