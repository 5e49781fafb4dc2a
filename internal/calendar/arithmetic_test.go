package calendar

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAddBusinessDays(t *testing.T) {
	cal := MustNew(newYear2024)
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{"zero returns start", d(2024, time.January, 10), 0, d(2024, time.January, 10)},
		{"zero on weekend returns weekend", d(2024, time.January, 6), 0, d(2024, time.January, 6)},
		{"T+2 midweek", d(2024, time.January, 29), 2, d(2024, time.January, 31)},
		{"over weekend", d(2024, time.January, 12), 1, d(2024, time.January, 15)},
		{"across year boundary and holiday run", d(2023, time.December, 28), 2, d(2024, time.January, 4)},
		{"backward across holiday run", d(2024, time.January, 4), -1, d(2023, time.December, 29)},
		{"backward from month end", d(2024, time.January, 31), -2, d(2024, time.January, 29)},
		{"from saturday forward", d(2024, time.January, 6), 1, d(2024, time.January, 8)},
		{"fourteen back", d(2024, time.January, 29), -14, d(2024, time.January, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.AddBusinessDays(tt.start, tt.n)
			if err != nil {
				t.Fatalf("AddBusinessDays: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("AddBusinessDays(%s, %d) = %s, want %s",
					tt.start.Format(KeyLayout), tt.n, got.Format(KeyLayout), tt.want.Format(KeyLayout))
			}
		})
	}
}

func TestAddBusinessDays_ZeroNormalizes(t *testing.T) {
	cal := MustNew(nil)
	in := time.Date(2024, time.May, 15, 13, 45, 0, 0, jst)
	got, err := cal.AddBusinessDays(in, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(Normalize(in)) {
		t.Errorf("AddBusinessDays(t, 0) = %v, want %v", got, Normalize(in))
	}
}

func TestAddBusinessDays_RoundTrip(t *testing.T) {
	cal := MustNew(newYear2024)
	for start := d(2023, time.December, 1); start.Before(d(2024, time.February, 15)); start = start.AddDate(0, 0, 1) {
		if !cal.IsBusinessDay(start) {
			continue
		}
		for _, n := range []int{1, 2, 5, 14, 30} {
			fwd, err := cal.AddBusinessDays(start, n)
			if err != nil {
				t.Fatal(err)
			}
			back, err := cal.AddBusinessDays(fwd, -n)
			if err != nil {
				t.Fatal(err)
			}
			if !back.Equal(start) {
				t.Fatalf("round trip %s %+d -> %s -> %s", start.Format(KeyLayout), n,
					fwd.Format(KeyLayout), back.Format(KeyLayout))
			}
		}
	}
}

func TestAddBusinessDays_Exhausted(t *testing.T) {
	all := make(map[string]string)
	for cur := d(2023, time.January, 1); cur.Year() < 2026; cur = cur.AddDate(0, 0, 1) {
		all[cur.Format(KeyLayout)] = "closed"
	}
	cal := MustNew(all)

	if _, err := cal.AddBusinessDays(d(2024, time.June, 3), 2); !errors.Is(err, ErrCalendarExhausted) {
		t.Errorf("forward walk err = %v, want ErrCalendarExhausted", err)
	}
	if _, err := cal.AddBusinessDays(d(2024, time.June, 3), -2); !errors.Is(err, ErrCalendarExhausted) {
		t.Errorf("backward walk err = %v, want ErrCalendarExhausted", err)
	}
	if _, err := cal.LastBusinessDayOnOrBefore(d(2025, time.June, 30)); !errors.Is(err, ErrCalendarExhausted) {
		t.Errorf("seek err = %v, want ErrCalendarExhausted", err)
	}
}

func TestLastBusinessDayOnOrBefore(t *testing.T) {
	cal := MustNew(map[string]string{
		"2024-04-29": "昭和の日",
		"2024-04-30": "test closure",
	})
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"business day is itself", d(2024, time.January, 31), d(2024, time.January, 31)},
		{"sunday month end", d(2024, time.March, 31), d(2024, time.March, 29)},
		{"holiday month end", d(2024, time.April, 30), d(2024, time.April, 26)},
		{"saturday month end", d(2024, time.August, 31), d(2024, time.August, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.LastBusinessDayOnOrBefore(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got.Format(KeyLayout), tt.want.Format(KeyLayout))
			}
		})
	}
}

func TestLastBusinessDayOfMonth_StaysInMonth(t *testing.T) {
	cal := MustNew(map[string]string{
		"2024-12-30": "年末休業",
		"2024-12-31": "年末休業",
	})
	for year := 2023; year <= 2026; year++ {
		for m := time.January; m <= time.December; m++ {
			got, err := cal.LastBusinessDayOfMonth(year, m)
			if err != nil {
				t.Fatal(err)
			}
			if got.Month() != m || got.Year() != year {
				t.Fatalf("%d-%02d: last business day %s left the month", year, m, got.Format(KeyLayout))
			}
			if !cal.IsBusinessDay(got) {
				t.Fatalf("%d-%02d: %s is not a business day", year, m, got.Format(KeyLayout))
			}
		}
	}
	got, _ := cal.LastBusinessDayOfMonth(2024, time.December)
	if !got.Equal(d(2024, time.December, 27)) {
		t.Errorf("December 2024 = %s, want 2024-12-27", got.Format(KeyLayout))
	}
}

func TestNextBusinessDayOnOrAfter(t *testing.T) {
	cal := MustNew(newYear2024)
	got, err := cal.NextBusinessDayOnOrAfter(d(2023, time.December, 30))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d(2024, time.January, 4)) {
		t.Errorf("got %s, want 2024-01-04", got.Format(KeyLayout))
	}
}

func TestBusinessDaysBetween(t *testing.T) {
	cal := MustNew(newYear2024)
	if got := cal.BusinessDaysBetween(d(2023, time.December, 25), d(2024, time.January, 5)); got != 7 {
		t.Errorf("BusinessDaysBetween = %d, want 7", got)
	}
	if got := cal.BusinessDaysBetween(d(2024, time.January, 5), d(2024, time.January, 1)); got != 0 {
		t.Errorf("reversed range = %d, want 0", got)
	}
}

func ExampleCalendar_AddBusinessDays() {
	cal := MustNew(map[string]string{
		"2024-01-01": "元日",
		"2024-01-02": "年始休業",
		"2024-01-03": "年始休業",
	})
	settle, _ := cal.AddBusinessDays(Date(2023, time.December, 28), 2)
	fmt.Println(settle.Format(KeyLayout))
	// Output: 2024-01-04
}

func BenchmarkAddBusinessDays(b *testing.B) {
	cal := MustNew(newYear2024)
	start := d(2023, time.December, 20)
	for b.Loop() {
		_, _ = cal.AddBusinessDays(start, 14)
	}
}
