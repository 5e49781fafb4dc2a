package settlement

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// maxMarkerMonths bounds each side of a MarkersAround window.
const maxMarkerMonths = 1200

// Markers are the two highlighted days of a month.
type Markers struct {
	Year            int        `json:"year"`
	Month           time.Month `json:"month"`
	LastBusinessDay time.Time  `json:"last_business_day"`
	GenwatashiDay   time.Time  `json:"genwatashi_day"`
}

// MonthMarkers returns the last business day and genwatashi day of a month.
func (r *Resolver) MonthMarkers(year int, month time.Month) (Markers, error) {
	lastBD, err := r.cal.LastBusinessDayOfMonth(year, month)
	if err != nil {
		return Markers{}, fmt.Errorf("settlement: markers %d-%02d: %w", year, month, err)
	}
	gen, err := r.cal.AddBusinessDays(lastBD, GenwatashiFromLastBD)
	if err != nil {
		return Markers{}, fmt.Errorf("settlement: markers %d-%02d: %w", year, month, err)
	}
	return Markers{Year: year, Month: month, LastBusinessDay: lastBD, GenwatashiDay: gen}, nil
}

// MarkersAround returns markers for the months from anchor-before to
// anchor+after-1, oldest first.
func (r *Resolver) MarkersAround(anchor time.Time, before, after int) ([]Markers, error) {
	if before < 0 || after < 0 || before > maxMarkerMonths || after > maxMarkerMonths {
		return nil, fmt.Errorf("%w: marker window %d/%d", domain.ErrInvalidInput, before, after)
	}
	a := calendar.Normalize(anchor)
	first := time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]Markers, 0, before+after)
	for i := -before; i < after; i++ {
		m := first.AddDate(0, i, 0)
		mk, err := r.MonthMarkers(m.Year(), m.Month())
		if err != nil {
			return nil, err
		}
		out = append(out, mk)
	}
	return out, nil
}
