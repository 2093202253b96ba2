// responses.go -- Package-wide HTTP response helpers.
//
// Bodies are fixed strings; nothing user-controlled is interpolated.
package auth

import (
	"net/http"
)

// Unauthenticated returns 401 {"ok":false}. Never says why.
func Unauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"ok":false}`))
}

// OK returns 200 {"ok":true}.
func OK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"ok":true}`))
}

// TooManyRequests returns 429 with a generic message.
func TooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"ok":false,"message":"too many requests"}`))
}
