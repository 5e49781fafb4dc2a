// Command crosscalc prints the settlement dates, required funds and lending
// cost of one cross trade.
//
//	crosscalc -borrow 2024-01-10 -repay 2024-01-29 -price 1000 -shares 100 -holidays holidays.json
//	crosscalc -month 2024-03 -holidays https://holidays-jp.github.io/api/v1/date.json
//
// Without -holidays, or when the holiday source fails, only weekends are
// treated as closed days and a warning is logged.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/alanyoungcy/crosstrade/internal/platform/cao"
	"github.com/alanyoungcy/crosstrade/internal/platform/holidayapi"
	"github.com/alanyoungcy/crosstrade/internal/quote"
	"github.com/alanyoungcy/crosstrade/internal/settlement"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	borrow     string
	repay      string
	price      string
	shares     string
	limitRange bool
	holidays   string
	month      string
	timeout    time.Duration
	asJSON     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("crosscalc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.borrow, "borrow", "", "borrow date, YYYY-MM-DD")
	fs.StringVar(&o.repay, "repay", "", "repay trade date, YYYY-MM-DD (default: genwatashi day of the borrow month)")
	fs.StringVar(&o.price, "price", "", "stock price in yen")
	fs.StringVar(&o.shares, "shares", "", "number of shares")
	fs.BoolVar(&o.limitRange, "limit-range", false, "add the daily price limit to the price")
	fs.StringVar(&o.holidays, "holidays", "", `holiday source: a JSON file, an http(s) URL, or "cao"`)
	fs.StringVar(&o.month, "month", "", "print the markers of a month, YYYY-MM")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Second, "holiday fetch timeout")
	fs.BoolVar(&o.asJSON, "json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cal := loadCalendar(ctx, o.holidays, o.timeout)
	if cal.Degraded() {
		logger.Warn("holidays not loaded, only weekends are closed days",
			slog.String("reason", cal.DegradedReason().Error()),
		)
	}

	if o.month != "" {
		return printMonth(stdout, stderr, cal, o)
	}
	return printQuote(stdout, stderr, cal, o)
}

// loadCalendar picks the holiday source named on the command line. An empty
// name, or a source that fails, yields the weekends-only calendar.
func loadCalendar(ctx context.Context, source string, timeout time.Duration) *calendar.Calendar {
	if source == "" {
		return calendar.WeekendsOnly(errors.New("no holiday source given"))
	}
	holidays, err := fetchHolidays(ctx, source, timeout)
	if err != nil {
		return calendar.WeekendsOnly(fmt.Errorf("%w: %w", domain.ErrHolidayFeedUnavailable, err))
	}
	cal, err := calendar.New(holidays)
	if err != nil {
		return calendar.WeekendsOnly(fmt.Errorf("%w: %w", domain.ErrHolidayFeedUnavailable, err))
	}
	return cal
}

func fetchHolidays(ctx context.Context, source string, timeout time.Duration) (map[string]string, error) {
	var src domain.HolidaySource
	switch {
	case source == "cao":
		c, err := cao.NewClient(nil, timeout)
		if err != nil {
			return nil, err
		}
		src = c
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		src = holidayapi.NewClient(source, timeout)
	default:
		src = holidayapi.NewFileSource(source)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return src.FetchHolidays(ctx)
}

func printQuote(stdout, stderr io.Writer, cal *calendar.Calendar, o options) int {
	in := quote.ParseInput(o.borrow, o.repay, o.price, o.shares, o.limitRange)
	if in.RepayTradeDate.IsZero() && !in.BorrowDate.IsZero() {
		if d, err := quote.DefaultRepayDate(in.BorrowDate, cal); err == nil {
			in.RepayTradeDate = d
		}
	}

	res, err := quote.Compute(in, cal, quote.DefaultParams())
	switch {
	case errors.Is(err, quote.ErrIncompleteInput):
		fmt.Fprintln(stderr, "crosscalc: -borrow is required (and -repay unless the default applies)")
		return 2
	case err != nil:
		fmt.Fprintf(stderr, "crosscalc: %v\n", err)
		return 1
	}

	if o.asJSON {
		return writeJSON(stdout, stderr, res)
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	row := func(label, value string) { fmt.Fprintf(tw, "%s\t%s\n", label, value) }
	row("借入日", calendar.Key(res.BorrowDate))
	row("返済約定日", calendar.Key(res.RepayTradeDate))
	row("月末営業日", calendar.Key(res.Dates.LastBusinessDayOfMonth))
	row("権利落ち日", calendar.Key(res.Dates.RightsExDate))
	row("強制受渡日", calendar.Key(res.Dates.MandatoryDeliveryDate))
	row("新規建可能日", calendar.Key(res.Dates.NewPositionPossibleDate))
	row("実受渡日", calendar.Key(res.Dates.ActualSettlementDate))
	row("保有日数", fmt.Sprintf("%d", res.HoldingDays))
	row("基準価格", res.Funding.AdjustedPrice.StringFixed(0))
	row("約定代金", res.Funding.AcquisitionAmount.StringFixed(0))
	row("必要現金", res.Funding.RequiredCashFunds.StringFixed(0))
	row("必要保証金", res.Funding.RequiredShortSellFunds.StringFixed(0))
	row("必要資金合計", res.Funding.TotalRequiredFunds.StringFixed(0))
	row("日額貸株料", res.Cost.DailyCost.StringFixed(0))
	row("貸株料合計", res.Cost.TotalCost.StringFixed(0))
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "crosscalc: %v\n", err)
		return 1
	}
	return 0
}

func printMonth(stdout, stderr io.Writer, cal *calendar.Calendar, o options) int {
	t, err := time.Parse("2006-01", o.month)
	if err != nil {
		fmt.Fprintf(stderr, "crosscalc: -month: want YYYY-MM, got %q\n", o.month)
		return 2
	}
	m, err := settlement.NewResolver(cal).MonthMarkers(t.Year(), t.Month())
	if err != nil {
		fmt.Fprintf(stderr, "crosscalc: %v\n", err)
		return 1
	}
	holidays := cal.HolidaysInMonth(t.Year(), t.Month())

	if o.asJSON {
		return writeJSON(stdout, stderr, struct {
			settlement.Markers
			Holidays []calendar.Holiday `json:"holidays"`
		}{m, holidays})
	}

	fmt.Fprintf(stdout, "%04d-%02d\n", m.Year, int(m.Month))
	fmt.Fprintf(stdout, "月末営業日  %s\n", calendar.Key(m.LastBusinessDay))
	fmt.Fprintf(stdout, "現渡日      %s\n", calendar.Key(m.GenwatashiDay))
	for _, h := range holidays {
		fmt.Fprintf(stdout, "休日        %s %s\n", calendar.Key(h.Date), h.Name)
	}
	return 0
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "crosscalc: %v\n", err)
		return 1
	}
	return 0
}
