// Package holidayapi reads a JSON holiday feed of the form
// {"2024-01-01": "元日", ...}, such as holidays-jp.github.io.
package holidayapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// DefaultURL serves every Japanese public holiday from 1955 onward.
const DefaultURL = "https://holidays-jp.github.io/api/v1/date.json"

const (
	maxResponseSize = 1 << 20
	maxRetries      = 3
	userAgent       = "crosstrade/1.0"
)

// Client is the REST client for a JSON holiday feed.
type Client struct {
	url        string
	httpClient *http.Client
	retryDelay time.Duration
}

// NewClient creates a client for url. An empty url selects DefaultURL.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retryDelay: time.Second,
	}
}

// Name implements domain.HolidaySource.
func (c *Client) Name() string { return "holidayapi" }

// FetchHolidays downloads and validates the feed. Every failure wraps
// domain.ErrHolidayFeedUnavailable.
func (c *Client) FetchHolidays(ctx context.Context) (map[string]string, error) {
	body, err := c.doGet(ctx)
	if err != nil {
		return nil, fmt.Errorf("holidayapi: %w: %w", domain.ErrHolidayFeedUnavailable, err)
	}

	holidays, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("holidayapi: %w: %w", domain.ErrHolidayFeedUnavailable, err)
	}
	return holidays, nil
}

// Decode parses a feed body and canonicalizes its keys. An empty feed is an
// error.
func Decode(body []byte) (map[string]string, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}

	out := make(map[string]string, len(raw))
	for k, name := range raw {
		t, err := calendar.ParseKey(k)
		if err != nil {
			return nil, err
		}
		out[t.Format(calendar.KeyLayout)] = name
	}
	return out, nil
}

// doGet fetches the feed, retrying 429 and 5xx with exponential backoff.
func (c *Client) doGet(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("GET %s: %w", c.url, err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("GET %s: status %d", c.url, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("GET %s: status %d", c.url, resp.StatusCode)
		case err != nil:
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}
	return nil, lastErr
}

var _ domain.HolidaySource = (*Client)(nil)
