// session.go

// Session cookie management.
package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the opaque session handle.
// The __Host- prefix pins it to this origin, Path=/, and Secure.
const SessionCookieName = "__Host-session"

// InsecureSessionCookieName replaces SessionCookieName when Gateway.InsecureCookies is set.
// Browsers reject __Host- cookies without Secure, so plain-HTTP origins need another name.
const InsecureSessionCookieName = "session"

// maxHandleLen rejects absurd cookie values before they reach the store.
// Issued handles are 43 characters (32 bytes, unpadded base64url).
const maxHandleLen = 128

// cookieName returns the session cookie name for this gateway's transport.
func (h *Gateway) cookieName() string {
	if h.InsecureCookies {
		return InsecureSessionCookieName
	}
	return SessionCookieName
}

// setSessionCookie writes the session cookie with HttpOnly, SameSite=Lax, and Secure
// unless InsecureCookies is set. MaxAge is fixed from expiresAt and never renewed on activity.
func (h *Gateway) setSessionCookie(w http.ResponseWriter, handle string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    handle,
		Path:     "/",
		HttpOnly: true,
		Secure:   !h.InsecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   max(1, int(time.Until(expiresAt).Seconds())),
	})
}

// clearSessionCookie overwrites the session cookie with MaxAge=-1 to trigger browser deletion.
func (h *Gateway) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   !h.InsecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// readSessionHandle returns the handle from the request cookie.
// Missing, empty, or oversized values report false.
func (h *Gateway) readSessionHandle(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cookieName())
	if err != nil || c.Value == "" || len(c.Value) > maxHandleLen {
		return "", false
	}
	return c.Value, true
}
