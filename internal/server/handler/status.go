package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// CalendarStatus describes the active calendar.
type CalendarStatus interface {
	Status() domain.ServiceStatus
}

// StatusHandler serves the backend status for operators.
type StatusHandler struct {
	mode      string
	calendars CalendarStatus
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, calendars CalendarStatus, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, calendars: calendars, startedAt: startedAt}
}

// GetStatus responds with the run mode and calendar state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.calendars.Status()
	st.Mode = h.mode
	if !h.startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(h.startedAt).Seconds())
	}
	writeJSON(w, http.StatusOK, st)
}
