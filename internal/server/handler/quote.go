package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/quote"
	"github.com/alanyoungcy/crosstrade/internal/service"
	"github.com/alanyoungcy/crosstrade/internal/settlement"
)

// Default marker window around today: one year back, two years ahead.
const (
	defaultMarkersBefore = 12
	defaultMarkersAfter  = 24
	maxMarkersWindow     = 120
)

// QuoteService defines the methods that the quote handler requires from the
// service layer.
type QuoteService interface {
	Quote(ctx context.Context, in quote.Input) (service.QuoteResult, error)
	Month(year int, month time.Month) (service.MonthView, error)
	Markers(anchor time.Time, before, after int) ([]settlement.Markers, error)
	DefaultRepayDate(borrow time.Time) (time.Time, error)
	AddBusinessDays(from time.Time, n int) (time.Time, error)
}

// QuoteHandler serves the calculation endpoints.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, logger: logger}
}

// amount accepts a JSON number or string.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	if string(b) == "null" {
		*a = ""
		return nil
	}
	*a = amount(b)
	return nil
}

// QuoteRequest is the body of POST /api/quote.
type QuoteRequest struct {
	BorrowDate        string `json:"borrow_date"`
	RepayTradeDate    string `json:"repay_trade_date"`
	StockPrice        amount `json:"stock_price"`
	ShareCount        amount `json:"share_count"`
	IncludeLimitRange bool   `json:"include_limit_range"`
}

// Input converts the raw form values.
func (q QuoteRequest) Input() quote.Input {
	return quote.ParseInput(q.BorrowDate, q.RepayTradeDate, string(q.StockPrice), string(q.ShareCount), q.IncludeLimitRange)
}

type quoteResponse struct {
	service.QuoteResult
	SuggestedRepayDate string `json:"suggested_repay_date,omitempty"`
}

// PostQuote computes a quote from a JSON body.
// POST /api/quote
func (h *QuoteHandler) PostQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respond(w, r, req.Input())
}

// GetQuote computes a quote from query parameters.
// GET /api/quote?borrow=2024-01-10&repay=2024-01-29&price=1000&shares=100&limit_range=true
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.ParseBool(q.Get("limit_range"))
	h.respond(w, r, quote.ParseInput(q.Get("borrow"), q.Get("repay"), q.Get("price"), q.Get("shares"), limit))
}

func (h *QuoteHandler) respond(w http.ResponseWriter, r *http.Request, in quote.Input) {
	res, err := h.quotes.Quote(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "quote", err)
		return
	}

	out := quoteResponse{QuoteResult: res}
	if !res.Complete && !in.BorrowDate.IsZero() && in.RepayTradeDate.IsZero() {
		if t, err := h.quotes.DefaultRepayDate(in.BorrowDate); err == nil {
			out.SuggestedRepayDate = calendar.Key(t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMonth returns the highlighted days and holidays of a month.
// GET /api/calendar/{year}/{month}
func (h *QuoteHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(pathParam(r, "year"))
	if err != nil || year < 1900 || year > 2999 {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := strconv.Atoi(pathParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}

	view, err := h.quotes.Month(year, time.Month(month))
	if err != nil {
		writeServiceError(w, r, h.logger, "month", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetMarkers returns month markers around an anchor date.
// GET /api/markers?anchor=2024-01-15&before=12&after=24
func (h *QuoteHandler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	anchor := time.Now()
	if s := q.Get("anchor"); s != "" {
		t, ok := quote.ParseDate(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid anchor date")
			return
		}
		anchor = t
	}
	before := queryInt(q.Get("before"), defaultMarkersBefore)
	after := queryInt(q.Get("after"), defaultMarkersAfter)
	if before < 0 || after < 0 || before > maxMarkersWindow || after > maxMarkersWindow-before {
		writeError(w, http.StatusBadRequest, "invalid marker window")
		return
	}

	ms, err := h.quotes.Markers(anchor, before, after)
	if err != nil {
		writeServiceError(w, r, h.logger, "markers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markers": ms})
}

// GetBusinessDays moves n business days from a date.
// GET /api/business-days?from=2023-12-28&n=2
func (h *QuoteHandler) GetBusinessDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := quote.ParseDate(q.Get("from"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("n")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid n")
		return
	}

	got, err := h.quotes.AddBusinessDays(from, n)
	if err != nil {
		writeServiceError(w, r, h.logger, "business days", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":   calendar.Key(from),
		"n":      n,
		"result": calendar.Key(got),
	})
}
