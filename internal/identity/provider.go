// provider.go -- Identity provider shared types and error kinds.
package identity

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; an *APIError unwraps to one of these.
// ErrTransport may be joined with ErrExchangeFailed or ErrProfileFetchFailed
// when the call never got an HTTP response.
var (
	ErrExchangeFailed     = errors.New("code exchange failed")
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	ErrNotAMember         = errors.New("not a group member")
	ErrTransport          = errors.New("provider transport error")
)

// APIError is a non-success response from the provider.
// Body is diagnostic detail for operator logs only -- never show it to the end user.
type APIError struct {
	Kind   error
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", e.Kind, e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Kind }

// Profile is the authenticated user's identity as reported by the provider.
// GlobalName and Avatar are nil when the provider omits them.
type Profile struct {
	ID            string
	Handle        string
	Discriminator string
	GlobalName    *string
	Avatar        *string
}

// Membership is a principal's current standing in a group.
// Fetched fresh on each check; never persist it.
type Membership struct {
	PrincipalID string
	Nickname    *string
	Tags        []string
}
