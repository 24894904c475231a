package http

import (
	"context"
	"log"
	"net/http"
	"time"
)

type HealthHandler struct {
	ping    func(ctx context.Context) error
	timeout time.Duration
}

// NewHealthHandler reports ready while ping succeeds. A nil ping means the
// store has nothing to check.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping, timeout: 2 * time.Second}
}

// Method Get /healthz
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			log.Printf("Readiness check error: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, Response{Message: "storage unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, Response{Message: "ok"})
}
