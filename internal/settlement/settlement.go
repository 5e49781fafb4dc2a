// Package settlement derives the settlement-related dates of a margin
// cross-trade from a repay trade date.
package settlement

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
)

// Business-day offsets used by the resolver.
const (
	SettlementLag        = 2  // T+2
	RightsExOffset       = -2 // from the last business day of the month
	MandatoryDelivery    = 1  // from the rights-ex date
	NewPositionLeadTime  = -14
	GenwatashiFromLastBD = -1
)

// DateSet is the resolved bundle for one repay trade date.
type DateSet struct {
	LastBusinessDayOfMonth  time.Time `json:"last_business_day_of_month"`
	RightsExDate            time.Time `json:"rights_ex_date"`
	MandatoryDeliveryDate   time.Time `json:"mandatory_delivery_date"`
	NewPositionPossibleDate time.Time `json:"new_position_possible_date"`
	ActualSettlementDate    time.Time `json:"actual_settlement_date"`
}

// Resolver computes settlement dates against a fixed calendar.
type Resolver struct {
	cal *calendar.Calendar
}

// NewResolver creates a Resolver bound to cal.
func NewResolver(cal *calendar.Calendar) *Resolver {
	return &Resolver{cal: cal}
}

// Calendar returns the calendar the resolver walks.
func (r *Resolver) Calendar() *calendar.Calendar { return r.cal }

// Resolve computes the DateSet for repayTradeDate. Any walk that does not
// converge is returned as an error wrapping calendar.ErrCalendarExhausted.
func (r *Resolver) Resolve(repayTradeDate time.Time) (DateSet, error) {
	repay := calendar.Normalize(repayTradeDate)

	lastBD, err := r.cal.LastBusinessDayOfMonth(repay.Year(), repay.Month())
	if err != nil {
		return DateSet{}, fmt.Errorf("settlement: last business day: %w", err)
	}
	rightsEx, err := r.cal.AddBusinessDays(lastBD, RightsExOffset)
	if err != nil {
		return DateSet{}, fmt.Errorf("settlement: rights-ex date: %w", err)
	}
	mandatory, err := r.cal.AddBusinessDays(rightsEx, MandatoryDelivery)
	if err != nil {
		return DateSet{}, fmt.Errorf("settlement: mandatory delivery date: %w", err)
	}
	newPos, err := r.cal.AddBusinessDays(rightsEx, NewPositionLeadTime)
	if err != nil {
		return DateSet{}, fmt.Errorf("settlement: new position date: %w", err)
	}
	settle, err := r.cal.AddBusinessDays(repay, SettlementLag)
	if err != nil {
		return DateSet{}, fmt.Errorf("settlement: actual settlement date: %w", err)
	}

	return DateSet{
		LastBusinessDayOfMonth:  lastBD,
		RightsExDate:            rightsEx,
		MandatoryDeliveryDate:   mandatory,
		NewPositionPossibleDate: newPos,
		ActualSettlementDate:    settle,
	}, nil
}

// GenwatashiForMonth returns the business day before the last business day of
// the month. It is the default repay date offered when only a month is known.
func (r *Resolver) GenwatashiForMonth(year int, month time.Month) (time.Time, error) {
	lastBD, err := r.cal.LastBusinessDayOfMonth(year, month)
	if err != nil {
		return time.Time{}, fmt.Errorf("settlement: genwatashi %d-%02d: %w", year, month, err)
	}
	day, err := r.cal.AddBusinessDays(lastBD, GenwatashiFromLastBD)
	if err != nil {
		return time.Time{}, fmt.Errorf("settlement: genwatashi %d-%02d: %w", year, month, err)
	}
	return day, nil
}

// HoldingDays returns the whole calendar days from borrowDate to
// settlementDate. A settlement before the borrow date yields 0.
func HoldingDays(borrowDate, settlementDate time.Time) int {
	days := calendar.DaysBetween(borrowDate, settlementDate)
	if days < 0 {
		return 0
	}
	return days
}
