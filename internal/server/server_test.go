package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/domain"
	"github.com/alanyoungcy/crosstrade/internal/quote"
	"github.com/alanyoungcy/crosstrade/internal/server/handler"
	"github.com/alanyoungcy/crosstrade/internal/service"
)

const testAPIKey = "s3cret"

type staticSource struct {
	holidays map[string]string
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) FetchHolidays(context.Context) (map[string]string, error) {
	return s.holidays, nil
}

type stubLimiter struct {
	allow bool
	err   error
}

func (l stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, l.err
}

func (l stubLimiter) Wait(context.Context, string) error { return nil }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var newYear2024 = map[string]string{
	"2024-01-01": "元日",
	"2024-01-02": "年始休業",
	"2024-01-03": "年始休業",
}

// newTestHandler wires the full route table against an in-memory calendar.
// load=false leaves the calendar unloaded.
func newTestHandler(t *testing.T, holidays map[string]string, load bool, limiter domain.RateLimiter) http.Handler {
	t.Helper()
	logger := testLogger()
	cals := service.NewCalendarService([]domain.HolidaySource{staticSource{holidays}},
		service.CalendarDeps{}, service.CalendarConfig{}, logger)
	if load {
		if _, err := cals.Load(context.Background()); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	quotes := service.NewQuoteService(cals, quote.DefaultParams(), logger)

	return NewHandler(Config{APIKey: testAPIKey, RateLimit: 10, RateLimitWindow: time.Second}, Handlers{
		Health:   handler.NewHealthHandler(cals, logger),
		Status:   handler.NewStatusHandler("server", cals, time.Now()),
		Quotes:   handler.NewQuoteHandler(quotes, logger),
		Holidays: handler.NewHolidayHandler(cals, nil, logger),
	}, nil, limiter, logger)
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestHealthAndReady(t *testing.T) {
	h := newTestHandler(t, newYear2024, false, nil)
	if rec, _ := do(t, h, http.MethodGet, "/api/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/ready", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready before load = %d, want 503", rec.Code)
	}

	h = newTestHandler(t, newYear2024, true, nil)
	if rec, _ := do(t, h, http.MethodGet, "/api/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("ready after load = %d, want 200", rec.Code)
	}
	rec, body := do(t, h, http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusOK || body["mode"] != "server" || body["calendar_source"] != "static" {
		t.Errorf("status = %d %v", rec.Code, body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestPostQuote(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	rec, body := do(t, h, http.MethodPost, "/api/quote", `{
		"borrow_date": "2024-01-10",
		"repay_trade_date": "2024/1/29",
		"stock_price": "1,000",
		"share_count": 100
	}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if body["complete"] != true {
		t.Fatalf("complete = %v", body["complete"])
	}
	res := body["result"].(map[string]any)
	if res["holding_days"] != float64(21) {
		t.Errorf("holding_days = %v", res["holding_days"])
	}
	dates := res["dates"].(map[string]any)
	if dates["actual_settlement_date"] != "2024-01-31T00:00:00Z" {
		t.Errorf("settlement = %v", dates["actual_settlement_date"])
	}
	cost := res["cost"].(map[string]any)
	if cost["daily_cost"] != "11" || cost["total_cost"] != "231" {
		t.Errorf("cost = %v", cost)
	}
	fund := res["funding"].(map[string]any)
	if fund["total_required_funds"] != "400000" {
		t.Errorf("funding = %v", fund)
	}
}

func TestPostQuote_BadBody(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	if rec, _ := do(t, h, http.MethodPost, "/api/quote", `{"borrow_date":`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetQuote_IncompleteSuggestsRepayDate(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	rec, body := do(t, h, http.MethodGet, "/api/quote?borrow=2024-01-10&price=1000&shares=100", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["complete"] != false || body["result"] != nil {
		t.Errorf("body = %v, want incomplete", body)
	}
	if body["suggested_repay_date"] != "2024-01-30" {
		t.Errorf("suggested_repay_date = %v", body["suggested_repay_date"])
	}
}

func TestQuote_NotReady(t *testing.T) {
	h := newTestHandler(t, newYear2024, false, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/quote?borrow=2024-01-10&repay=2024-01-29", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestQuote_CalendarExhausted(t *testing.T) {
	all := make(map[string]string)
	for cur := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC); cur.Year() < 2026; cur = cur.AddDate(0, 0, 1) {
		all[cur.Format("2006-01-02")] = "closed"
	}
	h := newTestHandler(t, all, true, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/quote?borrow=2024-06-03&repay=2024-06-10", "", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestGetMonth(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	rec, body := do(t, h, http.MethodGet, "/api/calendar/2024/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["genwatashi_day"] != "2024-01-30T00:00:00Z" || body["last_business_day"] != "2024-01-31T00:00:00Z" {
		t.Errorf("body = %v", body)
	}
	if hs := body["holidays"].([]any); len(hs) != 3 {
		t.Errorf("holidays = %v", hs)
	}

	for _, target := range []string{"/api/calendar/2024/13", "/api/calendar/x/1"} {
		if rec, _ := do(t, h, http.MethodGet, target, "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", target, rec.Code)
		}
	}
}

func TestGetMarkers(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	rec, body := do(t, h, http.MethodGet, "/api/markers?anchor=2024-03-15&before=1&after=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ms := body["markers"].([]any); len(ms) != 3 {
		t.Errorf("markers = %v", ms)
	}
	for _, target := range []string{
		"/api/markers?before=-1",
		"/api/markers?before=121",
		"/api/markers?before=100&after=21",
		"/api/markers?before=9223372036854775807&after=1",
		"/api/markers?before=1&after=9223372036854775807",
	} {
		if rec, _ := do(t, h, http.MethodGet, target, "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", target, rec.Code)
		}
	}
}

func TestGetBusinessDays(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	tests := []struct {
		target string
		code   int
		want   string
	}{
		{"/api/business-days?from=2023-12-28&n=2", http.StatusOK, "2024-01-04"},
		{"/api/business-days?from=2024-01-04&n=-1", http.StatusOK, "2023-12-29"},
		{"/api/business-days?from=bad&n=1", http.StatusBadRequest, ""},
		{"/api/business-days?from=2024-01-04", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		rec, body := do(t, h, http.MethodGet, tt.target, "", nil)
		if rec.Code != tt.code {
			t.Errorf("%s = %d, want %d", tt.target, rec.Code, tt.code)
			continue
		}
		if tt.want != "" && body["result"] != tt.want {
			t.Errorf("%s result = %v, want %s", tt.target, body["result"], tt.want)
		}
	}
}

func TestHolidays(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	rec, body := do(t, h, http.MethodGet, "/api/holidays?year=2024", "", nil)
	if rec.Code != http.StatusOK || len(body["holidays"].([]any)) != 3 {
		t.Errorf("holidays = %d %v", rec.Code, body)
	}
	_, body = do(t, h, http.MethodGet, "/api/holidays?year=2025", "", nil)
	if hs := body["holidays"].([]any); len(hs) != 0 {
		t.Errorf("2025 holidays = %v", hs)
	}
}

func TestReload_RequiresAPIKey(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	if rec, _ := do(t, h, http.MethodPost, "/api/holidays/reload", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key = %d, want 401", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodPost, "/api/holidays/reload", "", map[string]string{"X-API-Key": "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key = %d, want 401", rec.Code)
	}
	rec, body := do(t, h, http.MethodPost, "/api/holidays/reload", "",
		map[string]string{"Authorization": "Bearer " + testAPIKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("reload = %d", rec.Code)
	}
	ev := body["event"].(map[string]any)
	if ev["holiday_count"] != float64(3) {
		t.Errorf("event = %v", ev)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, stubLimiter{allow: false})
	if rec, _ := do(t, h, http.MethodGet, "/api/health", "", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("denied = %d, want 429", rec.Code)
	}

	h = newTestHandler(t, newYear2024, true, stubLimiter{err: errors.New("redis down")})
	if rec, _ := do(t, h, http.MethodGet, "/api/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("limiter error = %d, want fail-open 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, newYear2024, true, nil)
	rec, _ := do(t, h, http.MethodOptions, "/api/quote", "", map[string]string{"Origin": "https://example.jp"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://example.jp" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
