package handler

import (
	"net/http"
)

// Check is a named readiness probe.
type Check struct {
	Name  string
	Ready func() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks []Check
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if !c.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": c.Name + " not ready",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
