package calendar

import (
	"fmt"
	"strings"
	"time"
)

// KeyLayout is the canonical holiday key format.
const KeyLayout = "2006-01-02"

// jst is the business-day cutoff zone. Every input time is read as a calendar
// date in Tokyo before any lookup or arithmetic.
var jst = time.FixedZone("Asia/Tokyo", 9*60*60)

// Normalize returns the JST calendar date of t as midnight UTC. Two times that
// fall on the same Tokyo day normalize to the same value.
func Normalize(t time.Time) time.Time {
	y, m, d := t.In(jst).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a normalized date from its parts.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Key returns the canonical "YYYY-MM-DD" key of the normalized date of t.
func Key(t time.Time) string {
	return Normalize(t).Format(KeyLayout)
}

// ParseKey parses a holiday key. Besides the canonical layout it accepts the
// slash form used by the Cabinet Office CSV ("2024/1/1").
func ParseKey(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{KeyLayout, "2006/1/2", "2006-1-2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("calendar: invalid date key %q", s)
}

// LastCalendarDayOfMonth returns the last calendar day of the given month.
func LastCalendarDayOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative when b is
// before a). Both ends are normalized first.
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)).Hours() / 24)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
