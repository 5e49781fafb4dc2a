package calendar

import (
	"fmt"
	"time"
)

// MaxWalkDays bounds every calendar-day walk. A year of steps covers any
// offset the settlement rules use.
const MaxWalkDays = 365

// AddBusinessDays moves n business days from t. The start day itself is never
// counted: each step moves one calendar day and only business days consume the
// offset. n == 0 returns Normalize(t).
func (c *Calendar) AddBusinessDays(t time.Time, n int) (time.Time, error) {
	cur := Normalize(t)
	if n == 0 {
		return cur, nil
	}

	step, remaining := 1, n
	if n < 0 {
		step, remaining = -1, -n
	}

	for steps := 0; remaining > 0; steps++ {
		if steps >= MaxWalkDays {
			return time.Time{}, fmt.Errorf("calendar: add %d business days to %s: %w",
				n, Key(t), ErrCalendarExhausted)
		}
		cur = cur.AddDate(0, 0, step)
		if c.IsBusinessDay(cur) {
			remaining--
		}
	}
	return cur, nil
}

// LastBusinessDayOnOrBefore returns t itself when it is a business day,
// otherwise the closest earlier business day.
func (c *Calendar) LastBusinessDayOnOrBefore(t time.Time) (time.Time, error) {
	return c.seek(t, -1)
}

// NextBusinessDayOnOrAfter returns t itself when it is a business day,
// otherwise the closest later business day.
func (c *Calendar) NextBusinessDayOnOrAfter(t time.Time) (time.Time, error) {
	return c.seek(t, 1)
}

// LastBusinessDayOfMonth returns the last business day of the given month.
func (c *Calendar) LastBusinessDayOfMonth(year int, month time.Month) (time.Time, error) {
	return c.LastBusinessDayOnOrBefore(LastCalendarDayOfMonth(year, month))
}

// BusinessDaysBetween counts business days in [from, to]. It returns 0 when
// from is after to.
func (c *Calendar) BusinessDaysBetween(from, to time.Time) int {
	cur, end := Normalize(from), Normalize(to)
	count := 0
	for !cur.After(end) {
		if c.IsBusinessDay(cur) {
			count++
		}
		cur = cur.AddDate(0, 0, 1)
	}
	return count
}

func (c *Calendar) seek(t time.Time, step int) (time.Time, error) {
	cur := Normalize(t)
	for i := 0; i <= MaxWalkDays; i++ {
		if c.IsBusinessDay(cur) {
			return cur, nil
		}
		cur = cur.AddDate(0, 0, step)
	}
	return time.Time{}, fmt.Errorf("calendar: seek business day from %s: %w", Key(t), ErrCalendarExhausted)
}
