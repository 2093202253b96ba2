// session_handler.go -- Whoami re-validation and logout.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MGallo-Code/gatekeep/internal/entitlement"
	"github.com/MGallo-Code/gatekeep/internal/store"
)

// userResponse is the principal as exposed to the portal shell.
type userResponse struct {
	ID            string  `json:"id"`
	Handle        string  `json:"handle"`
	Discriminator string  `json:"discriminator"`
	DisplayName   string  `json:"displayName"`
	GlobalName    *string `json:"globalName,omitempty"`
	Avatar        *string `json:"avatar,omitempty"`
}

// Whoami handles GET /api/whoami -- re-checks group membership and entitlements on every call.
// Returns 200 {ok:true,user} or 401 {ok:false}; a failed re-check destroys the session.
func (h *Gateway) Whoami(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.readSessionHandle(r)
	if !ok {
		Unauthenticated(w)
		return
	}

	p, ok := h.revalidate(r, handle)
	if !ok {
		h.clearSessionCookie(w)
		Unauthenticated(w)
		return
	}

	writeUser(w, p)
}

// Principal handles GET /api/principal behind RequireAuth.
// Returns the principal RequireAuth injected, in the same shape as Whoami.
func (h *Gateway) Principal(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		Unauthenticated(w)
		return
	}
	writeUser(w, p)
}

// writeUser sends 200 {ok:true,user}.
func writeUser(w http.ResponseWriter, p *store.Principal) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		OK   bool         `json:"ok"`
		User userResponse `json:"user"`
	}{true, userResponse{
		ID:            p.ID,
		Handle:        p.Handle,
		Discriminator: p.Discriminator,
		DisplayName:   p.DisplayName,
		GlobalName:    p.GlobalName,
		Avatar:        p.Avatar,
	}})
}

// Logout handles POST /api/logout -- destroys the named session, if any. Always 200.
func (h *Gateway) Logout(w http.ResponseWriter, r *http.Request) {
	if handle, ok := h.readSessionHandle(r); ok {
		// Lookup only feeds the audit record; absence is fine.
		var principalID *string
		if sess, err := h.Sessions.Get(r.Context(), handle); err == nil {
			principalID = &sess.Principal.ID
		}
		if err := h.Sessions.Destroy(r.Context(), handle); err != nil {
			logError(r, "logout: failed to destroy session", "error", err)
		} else if principalID != nil {
			h.auditLog(r, principalID, "logout", nil)
			logInfo(r, "principal logged out", "principal_id", *principalID)
		}
	}

	h.clearSessionCookie(w)
	OK(w)
}

// revalidate loads the session for handle, re-fetches membership, and re-runs the evaluator.
// On allow it refreshes the display name and returns the current principal.
// On membership failure or deny it destroys the session. A missing session destroys nothing.
// Membership is fetched before the store is touched again, so no lock spans the network call.
func (h *Gateway) revalidate(r *http.Request, handle string) (*store.Principal, bool) {
	sess, err := h.Sessions.Get(r.Context(), handle)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			logDebug(r, "revalidate: no live session")
		} else {
			logError(r, "revalidate: session lookup failed", "error", err)
		}
		return nil, false
	}
	principalID := sess.Principal.ID

	member, err := h.IDP.FetchMembership(r.Context(), h.GroupID, principalID)
	if err != nil {
		reason := membershipFailure(r, err, principalID, "revalidate failed, destroying session")
		h.revoke(r, handle, sess, reason)
		return nil, false
	}

	if err := entitlement.Check(h.RequiredTags, entitlement.NewTagSet(member.Tags...)); err != nil {
		logWarn(r, "principal lost required tags, destroying session", "principal_id", principalID, "session_id", sess.ID, "error", err)
		h.revoke(r, handle, sess, reasonEntitlementDenied)
		return nil, false
	}

	name := displayName(member.Nickname, sess.Principal.GlobalName, sess.Principal.Handle)
	if err := h.Sessions.UpdateDisplayName(r.Context(), handle, name); err != nil {
		// Destroyed or expired while membership was being fetched; never resurrect it.
		if !errors.Is(err, store.ErrSessionNotFound) {
			logError(r, "revalidate: failed to update display name", "error", err)
			h.revoke(r, handle, sess, reasonSessionError)
		}
		return nil, false
	}

	p := sess.Principal
	p.DisplayName = name
	return &p, true
}

// revoke destroys the session and records why.
func (h *Gateway) revoke(r *http.Request, handle string, sess *store.Session, reason string) {
	if err := h.Sessions.Destroy(r.Context(), handle); err != nil {
		logError(r, "revoke: failed to destroy session", "error", err, "session_id", sess.ID)
	}
	h.auditLog(r, &sess.Principal.ID, "session.revoked", marshalMeta(struct {
		Reason    string `json:"reason"`
		SessionID string `json:"session_id"`
	}{reason, sess.ID.String()}))
}
