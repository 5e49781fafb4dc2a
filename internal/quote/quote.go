// Package quote wires the calendar, settlement, funding and cost packages
// into a single pure computation.
package quote

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/cost"
	"github.com/alanyoungcy/crosstrade/internal/funding"
	"github.com/alanyoungcy/crosstrade/internal/settlement"
)

// ErrIncompleteInput means a required date is missing. Callers treat it as
// "no result yet", not as a failure.
var ErrIncompleteInput = errors.New("incomplete input")

// Input is one set of form values.
type Input struct {
	BorrowDate        time.Time
	RepayTradeDate    time.Time
	StockPrice        decimal.Decimal
	ShareCount        decimal.Decimal
	IncludeLimitRange bool
}

// Params are the tunable rates.
type Params struct {
	Funding funding.Calculator
	Cost    cost.Calculator
}

// DefaultParams returns the standard margin and lending rates.
func DefaultParams() Params {
	return Params{Funding: funding.NewCalculator(), Cost: cost.NewCalculator()}
}

// Result is everything a caller displays for one input.
type Result struct {
	BorrowDate       time.Time          `json:"borrow_date"`
	RepayTradeDate   time.Time          `json:"repay_trade_date"`
	Dates            settlement.DateSet `json:"dates"`
	HoldingDays      int                `json:"holding_days"`
	Funding          funding.Figures    `json:"funding"`
	Cost             cost.Figures       `json:"cost"`
	CalendarDegraded bool               `json:"calendar_degraded"`
}

// Compute resolves dates and figures for in against cal. It returns
// ErrIncompleteInput when either date is zero and wraps
// calendar.ErrCalendarExhausted when a date cannot be resolved.
func Compute(in Input, cal *calendar.Calendar, p Params) (Result, error) {
	if in.BorrowDate.IsZero() || in.RepayTradeDate.IsZero() {
		return Result{}, ErrIncompleteInput
	}
	if cal == nil {
		return Result{}, errors.New("quote: nil calendar")
	}

	dates, err := settlement.NewResolver(cal).Resolve(in.RepayTradeDate)
	if err != nil {
		return Result{}, fmt.Errorf("quote: %w", err)
	}

	borrow := calendar.Normalize(in.BorrowDate)
	days := settlement.HoldingDays(borrow, dates.ActualSettlementDate)
	fund := p.Funding.Compute(in.StockPrice, in.ShareCount, in.IncludeLimitRange)

	return Result{
		BorrowDate:       borrow,
		RepayTradeDate:   calendar.Normalize(in.RepayTradeDate),
		Dates:            dates,
		HoldingDays:      days,
		Funding:          fund,
		Cost:             p.Cost.Compute(fund.AcquisitionAmount, days),
		CalendarDegraded: cal.Degraded(),
	}, nil
}

// DefaultRepayDate is the repay date preselected once a borrow date is
// chosen: the genwatashi day of the borrow month.
func DefaultRepayDate(borrow time.Time, cal *calendar.Calendar) (time.Time, error) {
	b := calendar.Normalize(borrow)
	return settlement.NewResolver(cal).GenwatashiForMonth(b.Year(), b.Month())
}
