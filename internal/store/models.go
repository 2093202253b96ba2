// models.go -- Shared domain types for the store package.
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrSessionNotFound is returned when a handle names no live session
// (never issued, destroyed, or expired).
var ErrSessionNotFound = errors.New("session not found")

// ErrRateLimitExceeded is returned by Allow when the caller is throttled or locked out.
// Callers use errors.Is to distinguish rate limit rejections from Redis failures.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrDisabled is returned by CheckHealth on optional backends that are not configured.
var ErrDisabled = errors.New("backend disabled")

// Principal is an authenticated identity plus its current display name.
// GlobalName and Avatar are nil when the provider did not supply them.
type Principal struct {
	ID            string
	Handle        string
	Discriminator string
	GlobalName    *string
	Avatar        *string
	DisplayName   string
}

// clone returns a deep copy so callers never alias a stored Principal.
func (p Principal) clone() Principal {
	if p.GlobalName != nil {
		g := *p.GlobalName
		p.GlobalName = &g
	}
	if p.Avatar != nil {
		a := *p.Avatar
		p.Avatar = &a
	}
	return p
}

// Session is a live authenticated session.
// ID correlates log and audit entries; it is not the browser credential.
type Session struct {
	ID        uuid.UUID
	Principal Principal
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RateLimit defines the policy for a rate-limited action.
type RateLimit struct {
	MaxAttempts int           // attempts allowed within Window before lockout
	Window      time.Duration // fixed window for attempt counting
	LockoutTTL  time.Duration // how long to block after MaxAttempts is hit
}

// AuditEntry represents a row in the audit_logs table.
// PrincipalID is nil when the event happened before an identity was known.
// Metadata holds optional event context as a raw JSON blob (e.g. reason, session_id).
type AuditEntry struct {
	PrincipalID *string
	Action      string
	IPAddress   *string
	UserAgent   *string
	Metadata    []byte
}
