package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/alanyoungcy/crosstrade/internal/quote"
	"github.com/alanyoungcy/crosstrade/internal/settlement"
)

// CalendarProvider hands out the active calendar.
type CalendarProvider interface {
	Calendar() (*calendar.Calendar, error)
}

// QuoteResult is a quote.Result tagged for the caller. Complete is false when
// a required date is still missing.
type QuoteResult struct {
	ID       string        `json:"id"`
	Complete bool          `json:"complete"`
	Result   *quote.Result `json:"result,omitempty"`
}

// MonthView is what a calendar page needs to render one month.
type MonthView struct {
	Year            int                `json:"year"`
	Month           int                `json:"month"`
	LastBusinessDay time.Time          `json:"last_business_day"`
	GenwatashiDay   time.Time          `json:"genwatashi_day"`
	Holidays        []calendar.Holiday `json:"holidays"`
	Degraded        bool               `json:"degraded"`
}

// QuoteService runs the settlement pipeline against the active calendar.
type QuoteService struct {
	calendars CalendarProvider
	params    quote.Params
	logger    *slog.Logger
}

// NewQuoteService creates a QuoteService.
func NewQuoteService(calendars CalendarProvider, params quote.Params, logger *slog.Logger) *QuoteService {
	return &QuoteService{
		calendars: calendars,
		params:    params,
		logger:    logger.With(slog.String("component", "quote_service")),
	}
}

// Quote computes the result for in. Missing dates yield an incomplete result,
// not an error.
func (s *QuoteService) Quote(ctx context.Context, in quote.Input) (QuoteResult, error) {
	cal, err := s.calendars.Calendar()
	if err != nil {
		return QuoteResult{}, fmt.Errorf("quote_service: quote: %w", err)
	}

	out := QuoteResult{ID: uuid.NewString()}
	res, err := quote.Compute(in, cal, s.params)
	switch {
	case errors.Is(err, quote.ErrIncompleteInput):
		return out, nil
	case err != nil:
		s.logger.WarnContext(ctx, "quote failed",
			slog.String("repay", calendar.Key(in.RepayTradeDate)),
			slog.String("error", err.Error()),
		)
		return QuoteResult{}, fmt.Errorf("quote_service: quote: %w", err)
	}

	out.Complete = true
	out.Result = &res
	s.logger.DebugContext(ctx, "quote computed",
		slog.String("id", out.ID),
		slog.String("settlement", calendar.Key(res.Dates.ActualSettlementDate)),
		slog.Int("holding_days", res.HoldingDays),
	)
	return out, nil
}

// Month returns the markers and holidays of one month.
func (s *QuoteService) Month(year int, month time.Month) (MonthView, error) {
	if month < time.January || month > time.December {
		return MonthView{}, fmt.Errorf("quote_service: month %d: %w", month, domain.ErrInvalidInput)
	}
	cal, err := s.calendars.Calendar()
	if err != nil {
		return MonthView{}, fmt.Errorf("quote_service: month: %w", err)
	}
	m, err := settlement.NewResolver(cal).MonthMarkers(year, month)
	if err != nil {
		return MonthView{}, fmt.Errorf("quote_service: month: %w", err)
	}
	holidays := cal.HolidaysInMonth(year, month)
	if holidays == nil {
		holidays = []calendar.Holiday{}
	}
	return MonthView{
		Year:            year,
		Month:           int(month),
		LastBusinessDay: m.LastBusinessDay,
		GenwatashiDay:   m.GenwatashiDay,
		Holidays:        holidays,
		Degraded:        cal.Degraded(),
	}, nil
}

// Markers returns month markers for the window [anchor-before, anchor+after)
// in months.
func (s *QuoteService) Markers(anchor time.Time, before, after int) ([]settlement.Markers, error) {
	if before < 0 || after < 0 {
		return nil, fmt.Errorf("quote_service: markers: %w", domain.ErrInvalidInput)
	}
	cal, err := s.calendars.Calendar()
	if err != nil {
		return nil, fmt.Errorf("quote_service: markers: %w", err)
	}
	ms, err := settlement.NewResolver(cal).MarkersAround(anchor, before, after)
	if err != nil {
		return nil, fmt.Errorf("quote_service: markers: %w", err)
	}
	return ms, nil
}

// DefaultRepayDate is the repay date suggested for a borrow date.
func (s *QuoteService) DefaultRepayDate(borrow time.Time) (time.Time, error) {
	cal, err := s.calendars.Calendar()
	if err != nil {
		return time.Time{}, fmt.Errorf("quote_service: default repay: %w", err)
	}
	t, err := quote.DefaultRepayDate(borrow, cal)
	if err != nil {
		return time.Time{}, fmt.Errorf("quote_service: default repay: %w", err)
	}
	return t, nil
}

// AddBusinessDays moves n business days from from.
func (s *QuoteService) AddBusinessDays(from time.Time, n int) (time.Time, error) {
	cal, err := s.calendars.Calendar()
	if err != nil {
		return time.Time{}, fmt.Errorf("quote_service: add business days: %w", err)
	}
	t, err := cal.AddBusinessDays(from, n)
	if err != nil {
		return time.Time{}, fmt.Errorf("quote_service: add business days: %w", err)
	}
	return t, nil
}
