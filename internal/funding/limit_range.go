package funding

import "github.com/shopspring/decimal"

type limitTier struct {
	below int64 // exclusive upper bound of the price band
	limit int64
}

// TSE daily price limits (値幅制限), ordered by band.
var limitTiers = []limitTier{
	{100, 30},
	{200, 50},
	{500, 80},
	{700, 100},
	{1000, 150},
	{1500, 300},
	{2000, 400},
	{3000, 500},
	{5000, 700},
	{7000, 1000},
	{10000, 1500},
	{15000, 3000},
	{20000, 4000},
	{30000, 5000},
	{50000, 7000},
	{70000, 10000},
	{100000, 15000},
	{150000, 30000},
	{200000, 40000},
	{300000, 50000},
	{500000, 70000},
	{700000, 100000},
	{1000000, 150000},
	{1500000, 300000},
	{2000000, 400000},
	{3000000, 500000},
	{5000000, 700000},
	{7000000, 1000000},
	{10000000, 1500000},
	{15000000, 3000000},
	{20000000, 4000000},
	{30000000, 5000000},
	{50000000, 7000000},
}

const topLimit = 10000000

// LimitRange returns the daily price-limit width for a base price. The result
// never decreases as price grows.
func LimitRange(price decimal.Decimal) decimal.Decimal {
	for _, tier := range limitTiers {
		if price.LessThan(decimal.NewFromInt(tier.below)) {
			return decimal.NewFromInt(tier.limit)
		}
	}
	return decimal.NewFromInt(topLimit)
}
