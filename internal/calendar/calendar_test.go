package calendar

import (
	"errors"
	"testing"
	"time"
)

// d is a test helper to construct dates.
func d(year int, month time.Month, day int) time.Time {
	return Date(year, month, day)
}

var newYear2024 = map[string]string{
	"2024-01-01": "元日",
	"2024-01-02": "年始休業",
	"2024-01-03": "年始休業",
}

func TestNew_CanonicalizesKeys(t *testing.T) {
	cal, err := New(map[string]string{
		"2024/1/8":   "成人の日",
		"2024-02-12": "休日",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !cal.IsHoliday(d(2024, time.January, 8)) {
		t.Error("slash key should be canonicalized to 2024-01-08")
	}
	if got := cal.HolidayName(d(2024, time.February, 12)); got != "休日" {
		t.Errorf("HolidayName = %q, want 休日", got)
	}
	if cal.Degraded() {
		t.Error("calendar built from data should not be degraded")
	}
}

func TestNew_RejectsMalformedKey(t *testing.T) {
	if _, err := New(map[string]string{"tomorrow": "x"}); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestWeekendsOnly(t *testing.T) {
	reason := errors.New("feed down")
	cal := WeekendsOnly(reason)
	if !cal.Degraded() {
		t.Fatal("WeekendsOnly calendar must report degraded")
	}
	if !errors.Is(cal.DegradedReason(), reason) {
		t.Errorf("DegradedReason = %v, want %v", cal.DegradedReason(), reason)
	}
	if !cal.IsBusinessDay(d(2024, time.January, 1)) {
		t.Error("weekends-only calendar must treat New Year's Day (Mon) as a business day")
	}
	if WeekendsOnly(nil).DegradedReason() == nil {
		t.Error("nil reason should still produce a degraded calendar")
	}
}

func TestIsBusinessDay(t *testing.T) {
	cal := MustNew(newYear2024)
	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"Monday holiday", d(2024, time.January, 1), false},
		{"Tuesday holiday", d(2024, time.January, 2), false},
		{"Thursday", d(2024, time.January, 4), true},
		{"Saturday", d(2024, time.January, 6), false},
		{"Sunday", d(2024, time.January, 7), false},
		{"Friday", d(2023, time.December, 29), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.IsBusinessDay(tt.date); got != tt.want {
				t.Errorf("IsBusinessDay(%s) = %v, want %v", tt.date.Format(KeyLayout), got, tt.want)
			}
		})
	}
}

func TestIsBusinessDay_WeekendsAndHolidaysNeverBusiness(t *testing.T) {
	cal := MustNew(newYear2024)
	for cur := d(2023, time.December, 1); cur.Before(d(2024, time.March, 1)); cur = cur.AddDate(0, 0, 1) {
		weekend := cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday
		want := !weekend && !cal.IsHoliday(cur)
		if got := cal.IsBusinessDay(cur); got != want {
			t.Fatalf("IsBusinessDay(%s) = %v, want %v", cur.Format(KeyLayout), got, want)
		}
	}
}

func TestNormalize_JSTCutoff(t *testing.T) {
	cal := MustNew(newYear2024)
	tests := []struct {
		name string
		time time.Time
		want bool
	}{
		// 2023-12-31 20:00 UTC = 2024-01-01 05:00 JST
		{"UTC evening before is already Jan 1 in JST", time.Date(2023, time.December, 31, 20, 0, 0, 0, time.UTC), true},
		// 2024-01-03 15:00 UTC = 2024-01-04 00:00 JST
		{"UTC afternoon Jan 3 is Jan 4 in JST", time.Date(2024, time.January, 3, 15, 0, 0, 0, time.UTC), false},
		{"JST late evening", time.Date(2024, time.January, 1, 23, 59, 0, 0, jst), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.IsHoliday(tt.time); got != tt.want {
				t.Errorf("IsHoliday(%v) = %v, want %v", tt.time.Format(time.RFC3339), got, tt.want)
			}
		})
	}
}

func TestHolidaysInMonth(t *testing.T) {
	cal := MustNew(map[string]string{
		"2024-01-01": "元日",
		"2024-01-08": "成人の日",
		"2024-02-11": "建国記念の日",
	})
	got := cal.HolidaysInMonth(2024, time.January)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Date.Equal(d(2024, time.January, 1)) || got[1].Name != "成人の日" {
		t.Errorf("unexpected order: %+v", got)
	}
	if n := len(cal.Holidays()); n != 3 {
		t.Errorf("Holidays() len = %d, want 3", n)
	}
}

func TestMap_ReturnsCopy(t *testing.T) {
	cal := MustNew(newYear2024)
	m := cal.Map()
	m["2024-01-04"] = "injected"
	if cal.IsHoliday(d(2024, time.January, 4)) {
		t.Error("mutating Map() result must not change the calendar")
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(d(2024, time.January, 10), d(2024, time.January, 31)); got != 21 {
		t.Errorf("DaysBetween = %d, want 21", got)
	}
	if got := DaysBetween(d(2024, time.March, 1), d(2024, time.February, 28)); got != -2 {
		t.Errorf("DaysBetween across leap day = %d, want -2", got)
	}
}
