// entitlement.go -- Pure allow/deny decision over entitlement tags.
//
// Recomputed on every check; never cache a Decision, membership can change
// between calls.
package entitlement

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDenied is the error kind reported when a member holds none of the required tags.
var ErrDenied = errors.New("entitlement denied")

// Decision is the result of Decide.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// TagSet is a set of opaque tag identifiers (role IDs).
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from the given tags, skipping empty strings.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// ParseTagSet parses a comma-separated list ("a, b,,c") into a TagSet.
// Whitespace around entries is trimmed and blanks dropped.
func ParseTagSet(csv string) TagSet {
	parts := strings.Split(csv, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return NewTagSet(parts...)
}

// Has reports whether tag is in the set.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Slice returns the tags in unspecified order.
func (s TagSet) Slice() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	return out
}

// Decide returns Allow when required is empty (feature disabled, any member passes)
// or when held shares at least one tag with required.
func Decide(required, held TagSet) Decision {
	if len(required) == 0 {
		return Allow
	}
	// Iterate the smaller set.
	small, large := required, held
	if len(held) < len(required) {
		small, large = held, required
	}
	for t := range small {
		if large.Has(t) {
			return Allow
		}
	}
	return Deny
}

// Check is Decide as an error: nil on Allow, ErrDenied wrapped with the
// size of the required set on Deny.
func Check(required, held TagSet) error {
	if Decide(required, held) == Allow {
		return nil
	}
	return fmt.Errorf("%w: holds none of %d required tags", ErrDenied, len(required))
}
