// handler.go -- Gateway dependencies and shared helpers for the /api/* handlers.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MGallo-Code/gatekeep/internal/entitlement"
	"github.com/MGallo-Code/gatekeep/internal/identity"
	"github.com/MGallo-Code/gatekeep/internal/store"
)

// IdentityProvider is the external identity provider.
// Satisfied by *identity.DiscordClient -- defined here (at consumer) per Go convention.
type IdentityProvider interface {
	// AuthCodeURL returns the provider consent page URL.
	AuthCodeURL() string

	// ExchangeCode trades an authorization code for an access token.
	// Errors match identity.ErrExchangeFailed.
	ExchangeCode(ctx context.Context, code string) (string, error)

	// FetchProfile returns the identity behind an access token.
	// Errors match identity.ErrProfileFetchFailed.
	FetchProfile(ctx context.Context, accessToken string) (*identity.Profile, error)

	// FetchMembership returns principalID's standing in groupID.
	// Errors match identity.ErrNotAMember (absent) or identity.ErrTransport (call failed).
	FetchMembership(ctx context.Context, groupID, principalID string) (*identity.Membership, error)
}

// SessionStore holds live sessions keyed by opaque handle.
// Satisfied by *store.MemoryStore.
type SessionStore interface {
	// Create stores a session for p and returns the handle for the cookie.
	Create(ctx context.Context, p store.Principal) (string, *store.Session, error)

	// Get returns the live session, or store.ErrSessionNotFound.
	Get(ctx context.Context, handle string) (*store.Session, error)

	// UpdateDisplayName changes the display name on a live session.
	// Returns store.ErrSessionNotFound if it is gone.
	UpdateDisplayName(ctx context.Context, handle, name string) error

	// Destroy removes the session. Unknown handles are not an error.
	Destroy(ctx context.Context, handle string) error
}

// Auditor records auth events. Satisfied by *store.PostgresStore and store.NopAuditor.
type Auditor interface {
	WriteAuditLog(ctx context.Context, e store.AuditEntry) error
	CheckHealth(ctx context.Context) error
}

// RateLimiter checks and records rate limit state for a given key and policy.
// Satisfied by *store.RedisRateLimiter and *store.MemoryRateLimiter.
type RateLimiter interface {
	// Allow records the attempt. Returns store.ErrRateLimitExceeded when throttled.
	Allow(ctx context.Context, key string, policy store.RateLimit) error
	CheckHealth(ctx context.Context) error
}

// Gateway holds dependencies for the login, callback, whoami, and logout handlers.
type Gateway struct {
	IDP      IdentityProvider
	Sessions SessionStore
	Audit    Auditor     // nil disables auditing
	RL       RateLimiter // nil disables rate limiting

	// GroupID is the group every principal must belong to.
	GroupID string
	// RequiredTags is the entitlement allow-list; empty admits any group member.
	RequiredTags entitlement.TagSet

	// AppURL is where a successful callback lands; DeniedURL is the "unauthorized" view.
	AppURL    string
	DeniedURL string

	// LoginLimit throttles /login and /callback per client IP.
	LoginLimit store.RateLimit

	// InsecureCookies drops Secure and the __Host- prefix from the session cookie,
	// for plain-HTTP origins only.
	InsecureCookies bool
}

// auditTimeout bounds a single audit write.
const auditTimeout = 5 * time.Second

// auditLog writes an audit entry. Failures are logged and never change the response.
// Detached from the request context so a disconnecting browser doesn't drop the record.
func (h *Gateway) auditLog(r *http.Request, principalID *string, action string, meta []byte) {
	if h.Audit == nil {
		return
	}
	ip := clientIP(r)
	ua := r.UserAgent()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	defer cancel()
	if err := h.Audit.WriteAuditLog(ctx, store.AuditEntry{
		PrincipalID: principalID,
		Action:      action,
		IPAddress:   &ip,
		UserAgent:   &ua,
		Metadata:    meta,
	}); err != nil {
		logWarn(r, "audit log write failed", "action", action, "error", err)
	}
}

// reasonMeta builds the {"reason": ...} metadata blob used by denial and revocation events.
func reasonMeta(reason string) []byte {
	return marshalMeta(struct {
		Reason string `json:"reason"`
	}{reason})
}

// marshalMeta encodes audit metadata, returning nil on failure.
func marshalMeta(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// displayName picks nickname, then global name, then handle.
func displayName(nickname, globalName *string, handle string) string {
	if nickname != nil && *nickname != "" {
		return *nickname
	}
	if globalName != nil && *globalName != "" {
		return *globalName
	}
	return handle
}
