// oauth_handler.go -- Login redirect and OAuth callback.
//
// Callback pipeline: exchange code -> fetch profile -> fetch membership ->
// evaluate entitlements -> create session. Any failure lands on DeniedURL
// with no session; the reason goes to logs and audit only.
package auth

import (
	"errors"
	"net/http"

	"github.com/MGallo-Code/gatekeep/internal/entitlement"
	"github.com/MGallo-Code/gatekeep/internal/identity"
	"github.com/MGallo-Code/gatekeep/internal/store"
)

// Denial reasons recorded in logs and audit metadata.
const (
	reasonProviderError     = "provider_error"
	reasonMissingCode       = "missing_code"
	reasonExchangeFailed    = "exchange_failed"
	reasonProfileFailed     = "profile_fetch_failed"
	reasonNotAMember        = "not_a_member"
	reasonTransportError    = "transport_error"
	reasonEntitlementDenied = "entitlement_denied"
	reasonSessionError      = "session_error"
)

// Login handles GET /api/login -- redirects the browser to the provider consent page.
func (h *Gateway) Login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.IDP.AuthCodeURL(), http.StatusFound)
}

// Callback handles GET /api/callback?code=&error= -- completes the OAuth flow and issues
// a session, or redirects to DeniedURL. Never retried; the browser restarts via Login.
func (h *Gateway) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Provider-reported error (e.g. access_denied) or no code: client error, no exchange.
	if providerErr := q.Get("error"); providerErr != "" {
		logInfo(r, "callback denied", "reason", reasonProviderError, "provider_error", providerErr)
		h.deny(w, r, nil, reasonProviderError)
		return
	}
	code := q.Get("code")
	if code == "" {
		logInfo(r, "callback denied", "reason", reasonMissingCode)
		h.deny(w, r, nil, reasonMissingCode)
		return
	}

	accessToken, err := h.IDP.ExchangeCode(r.Context(), code)
	if err != nil {
		logWarn(r, "callback denied", "reason", reasonExchangeFailed, "error", err)
		h.deny(w, r, nil, reasonExchangeFailed)
		return
	}

	profile, err := h.IDP.FetchProfile(r.Context(), accessToken)
	if err != nil {
		logWarn(r, "callback denied", "reason", reasonProfileFailed, "error", err)
		h.deny(w, r, nil, reasonProfileFailed)
		return
	}

	member, err := h.IDP.FetchMembership(r.Context(), h.GroupID, profile.ID)
	if err != nil {
		reason := membershipFailure(r, err, profile.ID, "callback denied")
		h.deny(w, r, &profile.ID, reason)
		return
	}

	if err := entitlement.Check(h.RequiredTags, entitlement.NewTagSet(member.Tags...)); err != nil {
		logWarn(r, "callback denied", "reason", reasonEntitlementDenied, "principal_id", profile.ID, "error", err)
		h.deny(w, r, &profile.ID, reasonEntitlementDenied)
		return
	}

	handle, sess, err := h.Sessions.Create(r.Context(), store.Principal{
		ID:            profile.ID,
		Handle:        profile.Handle,
		Discriminator: profile.Discriminator,
		GlobalName:    profile.GlobalName,
		Avatar:        profile.Avatar,
		DisplayName:   displayName(member.Nickname, profile.GlobalName, profile.Handle),
	})
	if err != nil {
		logError(r, "callback: failed to create session", "error", err, "principal_id", profile.ID)
		h.deny(w, r, &profile.ID, reasonSessionError)
		return
	}

	h.setSessionCookie(w, handle, sess.ExpiresAt)
	h.auditLog(r, &profile.ID, "login.success", marshalMeta(struct {
		SessionID string `json:"session_id"`
	}{sess.ID.String()}))
	logInfo(r, "principal logged in", "principal_id", profile.ID, "session_id", sess.ID)

	http.Redirect(w, r, h.AppURL, http.StatusFound)
}

// deny records the denial and redirects to DeniedURL. The reason is never sent to the browser.
func (h *Gateway) deny(w http.ResponseWriter, r *http.Request, principalID *string, reason string) {
	h.auditLog(r, principalID, "login.denied", reasonMeta(reason))
	http.Redirect(w, r, h.DeniedURL, http.StatusFound)
}

// membershipFailure logs a failed membership lookup at the right level and returns its reason.
// Absence from the group is expected (info); a failed call warrants attention (warn).
func membershipFailure(r *http.Request, err error, principalID, msg string) string {
	if errors.Is(err, identity.ErrNotAMember) {
		logInfo(r, msg, "reason", reasonNotAMember, "principal_id", principalID, "error", err)
		return reasonNotAMember
	}
	logWarn(r, msg, "reason", reasonTransportError, "principal_id", principalID, "error", err)
	return reasonTransportError
}
