package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// CalendarService defines what the holiday handler needs from the calendar
// owner.
type CalendarService interface {
	Calendar() (*calendar.Calendar, error)
	Refresh(ctx context.Context) (domain.CalendarEvent, error)
	RecentReloads(ctx context.Context, n int) ([]domain.CalendarEvent, error)
}

// HolidayHandler serves the holiday table and its admin operations.
type HolidayHandler struct {
	calendars CalendarService
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewHolidayHandler creates a HolidayHandler. audit may be nil.
func NewHolidayHandler(calendars CalendarService, audit domain.AuditStore, logger *slog.Logger) *HolidayHandler {
	return &HolidayHandler{calendars: calendars, audit: audit, logger: logger}
}

// ListHolidays returns the active holiday set, optionally for one year.
// GET /api/holidays?year=2024
func (h *HolidayHandler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	cal, err := h.calendars.Calendar()
	if err != nil {
		writeServiceError(w, r, h.logger, "list holidays", err)
		return
	}

	all := cal.Holidays()
	if v := r.URL.Query().Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		filtered := all[:0:0]
		for _, hd := range all {
			if hd.Date.Year() == year {
				filtered = append(filtered, hd)
			}
		}
		all = filtered
	}
	if all == nil {
		all = []calendar.Holiday{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"holidays": all,
		"degraded": cal.Degraded(),
	})
}

// Reload forces a holiday refresh. A failed fetch still answers 200 when a
// calendar is being served, with the failure in "error".
// POST /api/holidays/reload
func (h *HolidayHandler) Reload(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: holiday reload requested")
	ev, err := h.calendars.Refresh(r.Context())
	if err != nil {
		if ev.Source == "" {
			writeServiceError(w, r, h.logger, "reload", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": ev, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

// RecentReloads lists the latest reload events.
// GET /api/holidays/reloads?limit=20
func (h *HolidayHandler) RecentReloads(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	evs, err := h.calendars.RecentReloads(r.Context(), opts.Limit)
	if err != nil {
		writeServiceError(w, r, h.logger, "recent reloads", err)
		return
	}
	if evs == nil {
		evs = []domain.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloads": evs})
}

// AuditLog pages through the audit log.
// GET /api/holidays/audit?limit=50&offset=0
func (h *HolidayHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "audit log not configured")
		return
	}
	opts := parseListOpts(r)
	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "audit log", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}
