package cost

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCompute(t *testing.T) {
	calc := NewCalculator()
	tests := []struct {
		name      string
		amount    string
		days      int
		wantDaily string
		wantTotal string
	}{
		// 100000 * 0.039 / 365 = 10.684... -> 11
		{"rounds daily up", "100000", 21, "11", "231"},
		// 365000 * 0.039 / 365 = 39 exactly
		{"exact daily", "365000", 10, "39", "390"},
		{"one yen position", "1", 5, "1", "5"},
		{"tiny positive amount", "0.0000000000000000001", 3, "1", "3"},
		// 9358974.358974358974358974359 * 0.039 = 365000.000000000000000000000001
		{"just above a whole yen", "9358974.358974358974358974359", 2, "1001", "2002"},
		{"zero amount", "0", 21, "0", "0"},
		{"negative amount", "-500", 21, "0", "0"},
		{"zero days", "100000", 0, "0", "0"},
		{"negative days", "100000", -3, "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Compute(decimal.RequireFromString(tt.amount), tt.days)
			if !got.DailyCost.Equal(decimal.RequireFromString(tt.wantDaily)) {
				t.Errorf("DailyCost = %s, want %s", got.DailyCost, tt.wantDaily)
			}
			if !got.TotalCost.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("TotalCost = %s, want %s", got.TotalCost, tt.wantTotal)
			}
			if got.HoldingDays < 0 {
				t.Errorf("HoldingDays = %d, must not be negative", got.HoldingDays)
			}
		})
	}
}

func TestCompute_TotalIsDailyTimesDays(t *testing.T) {
	calc := Calculator{AnnualRate: decimal.RequireFromString("0.011")}
	for _, amount := range []int64{1234, 98765, 4500000, 123456789} {
		for _, days := range []int{1, 7, 30, 400} {
			got := calc.Compute(decimal.NewFromInt(amount), days)
			if !got.DailyCost.Equal(got.DailyCost.Ceil()) {
				t.Fatalf("daily cost %s is not integral", got.DailyCost)
			}
			if want := got.DailyCost.Mul(decimal.NewFromInt(int64(days))); !got.TotalCost.Equal(want) {
				t.Fatalf("total %s != daily %s * %d", got.TotalCost, got.DailyCost, days)
			}
		}
	}
}
