package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// Readiness reports whether the calendar has been loaded.
type Readiness interface {
	Ready() bool
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	ready  Readiness
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(ready Readiness, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{ready: ready, logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyCheck answers 503 until the first calendar is installed.
// GET /api/ready
func (h *HealthHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil || !h.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
