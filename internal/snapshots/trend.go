package snapshots

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Range is an inclusive snapshot_date window. Zero bounds are open.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// PeriodStats summarises hpp_value over one range.
type PeriodStats struct {
	Range Range           `json:"range"`
	Count int             `json:"count"`
	Avg   decimal.Decimal `json:"avg"`
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
}

// TrendComparison compares period B against baseline period A.
// PercentageChange is in percent.
type TrendComparison struct {
	A                PeriodStats          `json:"a"`
	B                PeriodStats          `json:"b"`
	Delta            decimal.Decimal      `json:"delta"`
	PercentageChange decimal.Decimal      `json:"percentage_change"`
	Trend            enums.TrendDirection `json:"trend"`
}

// Stats aggregates the cost per unit of the given snapshots.
func Stats(r Range, snapshots []models.HPPSnapshot) PeriodStats {
	stats := PeriodStats{Range: r, Avg: decimal.Zero, Min: decimal.Zero, Max: decimal.Zero}
	if len(snapshots) == 0 {
		return stats
	}
	sum := decimal.Zero
	stats.Min = snapshots[0].HPPValue
	stats.Max = snapshots[0].HPPValue
	for _, s := range snapshots {
		sum = sum.Add(s.HPPValue)
		stats.Min = decimal.Min(stats.Min, s.HPPValue)
		stats.Max = decimal.Max(stats.Max, s.HPPValue)
	}
	stats.Count = len(snapshots)
	stats.Avg = sum.Div(decimal.NewFromInt(int64(len(snapshots)))).Round(4)
	return stats
}

// Compare classifies the move from a to b. Changes within deadBand percent
// either way are stable. Without data on both sides, or with a zero baseline,
// the trend is stable with no change.
func Compare(a, b PeriodStats, deadBand decimal.Decimal) TrendComparison {
	out := TrendComparison{A: a, B: b, Delta: decimal.Zero, PercentageChange: decimal.Zero, Trend: enums.TrendStable}
	if a.Count == 0 || b.Count == 0 || !a.Avg.IsPositive() {
		return out
	}
	out.Delta = b.Avg.Sub(a.Avg)
	out.PercentageChange = out.Delta.Div(a.Avg).Mul(hundred).Round(4)
	switch {
	case out.PercentageChange.GreaterThan(deadBand):
		out.Trend = enums.TrendUp
	case out.PercentageChange.LessThan(deadBand.Neg()):
		out.Trend = enums.TrendDown
	}
	return out
}
