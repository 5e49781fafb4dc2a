package domain

import (
	"context"
	"time"
)

// HolidaySnapshot is one fetched holiday set. Keys are canonical
// "YYYY-MM-DD" dates, values are display names.
type HolidaySnapshot struct {
	Source    string            `json:"source"`
	Holidays  map[string]string `json:"holidays"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// HolidaySource fetches the market holiday set from an external feed.
type HolidaySource interface {
	Name() string
	FetchHolidays(ctx context.Context) (map[string]string, error)
}

// CalendarEvent is broadcast whenever the active calendar changes.
type CalendarEvent struct {
	Instance     string    `json:"instance"`
	Source       string    `json:"source"`
	HolidayCount int       `json:"holiday_count"`
	Degraded     bool      `json:"degraded"`
	Reason       string    `json:"reason,omitempty"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// ServiceStatus summarizes the running service.
type ServiceStatus struct {
	Mode           string    `json:"mode"`
	Ready          bool      `json:"ready"`
	CalendarSource string    `json:"calendar_source"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
	HolidayCount   int       `json:"holiday_count"`
	LoadedAt       time.Time `json:"loaded_at"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
}
