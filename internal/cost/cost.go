// Package cost computes the stock lending fee (貸株料) of a cross-trade.
package cost

import "github.com/shopspring/decimal"

// DefaultAnnualRate is the lending fee rate per year.
var DefaultAnnualRate = decimal.RequireFromString("0.039")

const daysPerYear = 365

// Figures are the lending cost of one position in whole yen.
type Figures struct {
	HoldingDays int             `json:"holding_days"`
	DailyCost   decimal.Decimal `json:"daily_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// Calculator applies an annual rate to an acquisition amount.
type Calculator struct {
	AnnualRate decimal.Decimal
}

// NewCalculator returns a Calculator using DefaultAnnualRate.
func NewCalculator() Calculator {
	return Calculator{AnnualRate: DefaultAnnualRate}
}

// Compute returns the daily and total lending cost. The daily figure is
// rounded up to the yen and the total is daily × holdingDays. A non-positive
// amount or holding period costs nothing.
func (c Calculator) Compute(acquisitionAmount decimal.Decimal, holdingDays int) Figures {
	if !acquisitionAmount.IsPositive() || holdingDays <= 0 {
		return Figures{HoldingDays: max(holdingDays, 0), DailyCost: decimal.Zero, TotalCost: decimal.Zero}
	}

	yearly := acquisitionAmount.Mul(c.AnnualRate)
	days := decimal.NewFromInt(daysPerYear)
	daily := yearly.DivRound(days, 16).Ceil()
	if daily.Mul(days).LessThan(yearly) {
		daily = daily.Add(decimal.NewFromInt(1))
	}

	return Figures{
		HoldingDays: holdingDays,
		DailyCost:   daily,
		TotalCost:   daily.Mul(decimal.NewFromInt(int64(holdingDays))),
	}
}
