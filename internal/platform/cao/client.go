// Package cao reads the Cabinet Office national holiday CSV
// (syukujitsu.csv). The file is Shift_JIS encoded with a
// "国民の祝日・休日月日,国民の祝日・休日名称" header.
package cao

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// DefaultURLs are tried in order.
var DefaultURLs = []string{
	"https://www8.cao.go.jp/chosei/shukujitsu/syukujitsu.csv",
	"https://www8.cao.go.jp/chosei/shukujitsu/shukujitsu.csv",
}

// allowedHosts guards configured URLs against pointing anywhere else.
var allowedHosts = map[string]bool{
	"www8.cao.go.jp": true,
	"www.cao.go.jp":  true,
}

const (
	maxCSVSize = 5 << 20
	userAgent  = "crosstrade/1.0"
)

// Client downloads the CSV from the first URL that answers.
type Client struct {
	urls       []string
	httpClient *http.Client
}

// NewClient validates urls and builds a client. Empty urls selects
// DefaultURLs.
func NewClient(urls []string, timeout time.Duration) (*Client, error) {
	if len(urls) == 0 {
		urls = DefaultURLs
	}
	for _, u := range urls {
		if err := validateURL(u); err != nil {
			return nil, err
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{urls: urls, httpClient: &http.Client{Timeout: timeout}}, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("cao: invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("cao: URL %q: only https is allowed", raw)
	}
	if !allowedHosts[u.Hostname()] {
		return fmt.Errorf("cao: URL %q: host %q is not allowed", raw, u.Hostname())
	}
	return nil
}

// Name implements domain.HolidaySource.
func (c *Client) Name() string { return "cao" }

// FetchHolidays downloads and parses the CSV. Every failure wraps
// domain.ErrHolidayFeedUnavailable.
func (c *Client) FetchHolidays(ctx context.Context) (map[string]string, error) {
	var errs []error
	for _, u := range c.urls {
		holidays, err := c.fetch(ctx, u)
		if err == nil {
			return holidays, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("cao: %w: %w", domain.ErrHolidayFeedUnavailable, errors.Join(errs...))
}

func (c *Client) fetch(ctx context.Context, u string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}

	decoded := transform.NewReader(io.LimitReader(resp.Body, maxCSVSize), japanese.ShiftJIS.NewDecoder())
	holidays, err := ParseCSV(decoded)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	return holidays, nil
}

// ParseCSV parses UTF-8 CSV text in the Cabinet Office layout.
func ParseCSV(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 2 || !strings.Contains(header[0], "国民の祝日") {
		return nil, fmt.Errorf("unexpected header %q", header)
	}

	out := make(map[string]string)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 columns, got %d", line, len(record))
		}

		dateStr := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		if dateStr == "" || name == "" {
			continue
		}

		t, err := calendar.ParseKey(dateStr)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out[t.Format(calendar.KeyLayout)] = name
	}

	if len(out) == 0 {
		return nil, errors.New("no holidays in CSV")
	}
	return out, nil
}

var _ domain.HolidaySource = (*Client)(nil)
