// Package funding computes the cash and margin funds a cross-trade needs.
package funding

import (
	"github.com/shopspring/decimal"
)

var (
	// DefaultMarginRatio is the short-sale margin requirement.
	DefaultMarginRatio = decimal.RequireFromString("0.31")
	// DefaultMarginFloor is the minimum short-sale margin deposit in yen.
	DefaultMarginFloor = decimal.NewFromInt(300000)
)

// Figures are the funding requirements of one position. Values are not
// rounded.
type Figures struct {
	AdjustedPrice          decimal.Decimal `json:"adjusted_price"`
	AcquisitionAmount      decimal.Decimal `json:"acquisition_amount"`
	RequiredCashFunds      decimal.Decimal `json:"required_cash_funds"`
	RequiredShortSellFunds decimal.Decimal `json:"required_short_sell_funds"`
	TotalRequiredFunds     decimal.Decimal `json:"total_required_funds"`
}

// Calculator holds the margin parameters.
type Calculator struct {
	MarginRatio decimal.Decimal
	MarginFloor decimal.Decimal
}

// NewCalculator returns a Calculator with the standard 31% / 300,000 yen
// margin rule.
func NewCalculator() Calculator {
	return Calculator{MarginRatio: DefaultMarginRatio, MarginFloor: DefaultMarginFloor}
}

// Compute derives the funding figures. Negative price or shares are treated
// as zero. With includeLimitRange the price is raised by LimitRange(price) to
// cover a limit-up fill.
func (c Calculator) Compute(price, shares decimal.Decimal, includeLimitRange bool) Figures {
	price = nonNegative(price)
	shares = nonNegative(shares)

	adjusted := price
	if includeLimitRange {
		adjusted = price.Add(LimitRange(price))
	}

	acquisition := adjusted.Mul(shares)
	shortSell := decimal.Max(acquisition.Mul(c.MarginRatio), c.MarginFloor)

	return Figures{
		AdjustedPrice:          adjusted,
		AcquisitionAmount:      acquisition,
		RequiredCashFunds:      acquisition,
		RequiredShortSellFunds: shortSell,
		TotalRequiredFunds:     acquisition.Add(shortSell),
	}
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
