// middleware.go

// Session and rate limit middleware.
package auth

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/MGallo-Code/gatekeep/internal/store"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the principal RequireAuth validated for this request.
// Returns nil and false if RequireAuth hasn't run.
func PrincipalFromContext(ctx context.Context) (*store.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*store.Principal)
	return p, ok
}

// RequireAuth gates downstream handlers on the same live re-check as Whoami:
// fresh membership fetch, entitlement evaluation, destroy on failure.
// Injects the current principal into context on success; 401 otherwise.
func (h *Gateway) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle, ok := h.readSessionHandle(r)
		if !ok {
			logDebug(r, "require auth failed", "reason", "missing_session_cookie")
			Unauthenticated(w)
			return
		}
		p, ok := h.revalidate(r, handle)
		if !ok {
			h.clearSessionCookie(w)
			Unauthenticated(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// RateLimit throttles requests per client IP under h.LoginLimit, keyed by action.
// Limiter backend failures are logged and let the request through.
func (h *Gateway) RateLimit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.RL == nil {
				next.ServeHTTP(w, r)
				return
			}
			err := h.RL.Allow(r.Context(), action+":"+clientIP(r), h.LoginLimit)
			if errors.Is(err, store.ErrRateLimitExceeded) {
				logWarn(r, "rate limit exceeded", "action", action)
				TooManyRequests(w)
				return
			}
			if err != nil {
				logWarn(r, "rate limiter unavailable, allowing request", "action", action, "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr (already rewritten by chi's RealIP).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
