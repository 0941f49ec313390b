package features

import (
	"context"
	"fmt"
	"math"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
	"MarketSignal/pkg/util"
)

const (
	momentumLimit = 500
	rangeBars     = 48
)

// horizon weights of the composite trend score.
var horizons = []struct {
	bars   int
	weight float64
}{
	{1, 0.1},
	{4, 0.2},
	{24, 0.45},
	{168, 0.25},
}

func (b *Builder) momentum(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	rows, err := b.repo.LatestPrices(ctx, q.pair, repository.Interval1h, momentumLimit, q.asOf)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	closes := closesOf(rows)

	changes := make([]*float64, len(horizons))
	var num, den float64
	for i, h := range horizons {
		changes[i] = pctChangeBack(closes, h.bars)
		if changes[i] != nil {
			num += h.weight * *changes[i]
			den += h.weight
		}
	}
	var trend *float64
	if den > 0 {
		trend = ptr(num / den)
	}
	vol := returnsStd(closes, dayBars)
	regime, reason := classifyRegime(trend, vol)

	snap.Momentum = models.MomentumFeatures{
		Change1h:     changes[0],
		Change4h:     changes[1],
		Change1d:     changes[2],
		Change7d:     changes[3],
		TrendScore:   trend,
		Volatility:   vol,
		Regime:       regime,
		RegimeReason: reason,
		Range:        priceRange(rows),
		LastPrice:    at(closes, 0),
	}
	return true, nil
}

func classifyRegime(trend, vol *float64) (string, string) {
	switch {
	case trend != nil && *trend >= 1.5:
		return models.RegimeBullTrend, fmt.Sprintf("trend score %.2f at or above 1.5", *trend)
	case trend != nil && *trend <= -1.5:
		return models.RegimeBearTrend, fmt.Sprintf("trend score %.2f at or below -1.5", *trend)
	case trend != nil && vol != nil && *vol > 5 && math.Abs(*trend) < 1.0:
		return models.RegimeHighVolChop, fmt.Sprintf("volatility %.2f with flat trend %.2f", *vol, *trend)
	case trend == nil && vol == nil:
		return models.RegimeUnknown, "not enough price history"
	default:
		return models.RegimeRange, "no dominant trend"
	}
}

func priceRange(rows []models.PriceRow) *models.PriceRange {
	if len(rows) > rangeBars {
		rows = rows[:rangeBars]
	}
	if len(rows) == 0 {
		return nil
	}
	high, low := rows[0].High, rows[0].Low
	for _, r := range rows[1:] {
		high = math.Max(high, r.High)
		low = math.Min(low, r.Low)
	}
	return &models.PriceRange{
		High:     high,
		Low:      low,
		WidthPct: util.SafeDiv(ptr((high-low)*100), ptr(low)),
	}
}
