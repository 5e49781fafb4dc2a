// Package calendar implements the Tokyo business-day calendar used by the
// settlement pipeline.
//
// A Calendar is an immutable set of public holidays. A date is a business day
// when it is Monday to Friday and not in that set. All time.Time inputs are
// first read as a JST calendar date (see Normalize), so the result does not
// depend on the caller's time zone or time of day.
//
//	cal, err := calendar.New(map[string]string{"2024-01-01": "元日"})
//	cal.IsBusinessDay(calendar.Date(2024, time.January, 1)) // false
//
// When the holiday feed cannot be loaded, use WeekendsOnly to keep serving in
// degraded mode.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrCalendarExhausted is returned when a business-day walk does not reach its
// target within the step bound, which only happens with pathological holiday
// data.
var ErrCalendarExhausted = errors.New("calendar exhausted")

// Holiday is a single registered holiday.
type Holiday struct {
	Date time.Time `json:"date"` // midnight UTC of the JST date
	Name string    `json:"name"`
}

// Calendar answers business-day queries. It is safe for concurrent use since
// nothing mutates it after construction.
type Calendar struct {
	holidays map[string]string
	degraded error
}

// New builds a Calendar from a key to label mapping. Keys are canonicalized;
// a key that is not a date is an error.
func New(holidays map[string]string) (*Calendar, error) {
	set := make(map[string]string, len(holidays))
	for k, name := range holidays {
		t, err := ParseKey(k)
		if err != nil {
			return nil, err
		}
		set[t.Format(KeyLayout)] = name
	}
	return &Calendar{holidays: set}, nil
}

// MustNew is like New but panics on a malformed key. Intended for tests and
// static tables.
func MustNew(holidays map[string]string) *Calendar {
	c, err := New(holidays)
	if err != nil {
		panic(err)
	}
	return c
}

// WeekendsOnly returns a calendar that recognizes no holidays. reason records
// why the holiday set is missing; a nil reason still marks the calendar as
// degraded.
func WeekendsOnly(reason error) *Calendar {
	if reason == nil {
		reason = errors.New("no holiday data")
	}
	return &Calendar{holidays: map[string]string{}, degraded: reason}
}

// Degraded reports whether the calendar is running without holiday data.
func (c *Calendar) Degraded() bool { return c.degraded != nil }

// DegradedReason returns the cause recorded by WeekendsOnly, or nil.
func (c *Calendar) DegradedReason() error { return c.degraded }

// Len returns the number of registered holidays.
func (c *Calendar) Len() int { return len(c.holidays) }

// IsHoliday reports whether t falls on a registered holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[Key(t)]
	return ok
}

// HolidayName returns the label of the holiday on t, or "".
func (c *Calendar) HolidayName(t time.Time) string {
	return c.holidays[Key(t)]
}

// IsBusinessDay reports whether t is a weekday that is not a holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	d := Normalize(t)
	if isWeekend(d) {
		return false
	}
	_, ok := c.holidays[d.Format(KeyLayout)]
	return !ok
}

// Holidays returns every registered holiday sorted by date.
func (c *Calendar) Holidays() []Holiday {
	return c.collect(func(time.Time) bool { return true })
}

// HolidaysInMonth returns the holidays of the given month sorted by date.
func (c *Calendar) HolidaysInMonth(year int, month time.Month) []Holiday {
	return c.collect(func(t time.Time) bool {
		return t.Year() == year && t.Month() == month
	})
}

// Map returns a copy of the underlying key to label mapping.
func (c *Calendar) Map() map[string]string {
	out := make(map[string]string, len(c.holidays))
	for k, v := range c.holidays {
		out[k] = v
	}
	return out
}

func (c *Calendar) collect(keep func(time.Time) bool) []Holiday {
	var result []Holiday
	for k, name := range c.holidays {
		t, err := time.Parse(KeyLayout, k)
		if err != nil || !keep(t) {
			continue
		}
		result = append(result, Holiday{Date: t, Name: name})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

func (c *Calendar) String() string {
	if c.Degraded() {
		return fmt.Sprintf("calendar(weekends-only: %v)", c.degraded)
	}
	return fmt.Sprintf("calendar(%d holidays)", len(c.holidays))
}
