package holidayapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/crosstrade/internal/domain"
)

func TestFetchHolidays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"2024-01-01":"元日","2024-1-8":"成人の日"}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second).FetchHolidays(context.Background())
	if err != nil {
		t.Fatalf("FetchHolidays: %v", err)
	}
	if len(got) != 2 || got["2024-01-08"] != "成人の日" {
		t.Errorf("FetchHolidays = %v", got)
	}
}

func TestFetchHolidays_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"2024-01-01":"元日"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.retryDelay = time.Millisecond
	if _, err := c.FetchHolidays(context.Background()); err != nil {
		t.Fatalf("FetchHolidays: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchHolidays_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, ""},
		{"bad json", http.StatusOK, "<html>"},
		{"empty", http.StatusOK, "{}"},
		{"bad key", http.StatusOK, `{"someday":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).FetchHolidays(context.Background())
			if !errors.Is(err, domain.ErrHolidayFeedUnavailable) {
				t.Fatalf("err = %v, want ErrHolidayFeedUnavailable", err)
			}
		})
	}
}
