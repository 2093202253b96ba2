// health_handler.go -- Health check handler for GET /health.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MGallo-Code/gatekeep/internal/store"
)

type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckHealth handles GET /health -- checks the rate limiter and audit backends.
// Each reports "ok", "error", or "disabled"; 503 if any is "error".
func (h *Gateway) CheckHealth(w http.ResponseWriter, r *http.Request) {
	rlStatus := h.backendStatus(r, "rate limiter", h.RL)
	auditStatus := h.backendStatus(r, "audit", h.Audit)

	w.Header().Set("Content-Type", "application/json")
	if rlStatus == "error" || auditStatus == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(struct {
		RateLimiter string `json:"ratelimiter"`
		Audit       string `json:"audit"`
	}{rlStatus, auditStatus})
}

func (h *Gateway) backendStatus(r *http.Request, name string, c healthChecker) string {
	if c == nil {
		return "disabled"
	}
	if err := c.CheckHealth(r.Context()); err != nil {
		if errors.Is(err, store.ErrDisabled) {
			return "disabled"
		}
		logError(r, name+" health check failed", "error", err)
		return "error"
	}
	return "ok"
}
