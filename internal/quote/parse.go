package quote

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crosstrade/internal/calendar"
)

// ParseAmount reads a price or share count. Blank, unparseable and negative
// input all yield zero. Thousands separators are accepted.
func ParseAmount(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil || v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// ParseDate reads a form date. ok is false for blank or malformed input.
func ParseDate(s string) (t time.Time, ok bool) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false
	}
	t, err := calendar.ParseKey(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseInput builds an Input from raw form strings. Missing dates are left
// zero so Compute reports ErrIncompleteInput.
func ParseInput(borrow, repay, price, shares string, limitRange bool) Input {
	in := Input{
		StockPrice:        ParseAmount(price),
		ShareCount:        ParseAmount(shares),
		IncludeLimitRange: limitRange,
	}
	if t, ok := ParseDate(borrow); ok {
		in.BorrowDate = t
	}
	if t, ok := ParseDate(repay); ok {
		in.RepayTradeDate = t
	}
	return in
}
