package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
	"github.com/alanyoungcy/crosstrade/internal/domain"
)

// HolidayStore implements domain.HolidayStore on the market_holidays table.
// It is also a domain.HolidaySource so operators can maintain holidays in the
// database directly.
type HolidayStore struct {
	pool *pgxpool.Pool
}

// NewHolidayStore creates a new HolidayStore backed by the given pool.
func NewHolidayStore(pool *pgxpool.Pool) *HolidayStore {
	return &HolidayStore{pool: pool}
}

// ReplaceAll swaps the whole table for holidays in one transaction.
func (s *HolidayStore) ReplaceAll(ctx context.Context, source string, holidays map[string]string) error {
	rows := make([][]any, 0, len(holidays))
	for key, name := range holidays {
		d, err := calendar.ParseKey(key)
		if err != nil {
			return fmt.Errorf("postgres: replace holidays: %w", err)
		}
		rows = append(rows, []any{d, name, source})
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM market_holidays`); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"market_holidays"},
			[]string{"holiday_date", "name", "source"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: replace holidays: %w", err)
	}
	return nil
}

// LoadAll returns the table as a canonical key to name map.
func (s *HolidayStore) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT holiday_date, name FROM market_holidays ORDER BY holiday_date`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load holidays: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var (
			d    time.Time
			name string
		)
		if err := rows.Scan(&d, &name); err != nil {
			return nil, fmt.Errorf("postgres: scan holiday: %w", err)
		}
		out[d.Format(calendar.KeyLayout)] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load holidays rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored holidays.
func (s *HolidayStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_holidays`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count holidays: %w", err)
	}
	return n, nil
}

// Name implements domain.HolidaySource.
func (s *HolidayStore) Name() string { return "postgres" }

// FetchHolidays implements domain.HolidaySource. An empty table is reported
// as domain.ErrNotFound so the caller moves on to the next source.
func (s *HolidayStore) FetchHolidays(ctx context.Context) (map[string]string, error) {
	m, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("postgres: market_holidays is empty: %w", domain.ErrNotFound)
	}
	return m, nil
}

var (
	_ domain.HolidayStore  = (*HolidayStore)(nil)
	_ domain.HolidaySource = (*HolidayStore)(nil)
)
