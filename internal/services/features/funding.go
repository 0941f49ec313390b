package features

import (
	"context"
	"sort"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
)

const (
	fundingLimit       = 200
	fundingFinerLimit  = 500
	fundingStatsWindow = 60
	fundingTrendLag    = 3
)

func (b *Builder) funding(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	interval := q.interval
	rows, err := b.repo.LatestFundingRates(ctx, q.pair, interval, b.exchanges, fundingLimit, q.asOf)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		if f, ok := repository.FinerInterval(interval); ok {
			interval = f
			rows, err = b.repo.LatestFundingRates(ctx, q.pair, interval, b.exchanges, fundingFinerLimit, q.asOf)
			if err != nil {
				return false, err
			}
		}
	}
	if len(rows) == 0 {
		return false, nil
	}

	byExchange := make(map[string][]float64)
	for _, r := range rows {
		byExchange[r.Exchange] = append(byExchange[r.Exchange], r.Close)
	}
	names := make([]string, 0, len(byExchange))
	for name := range byExchange {
		names = append(names, name)
	}
	sort.Strings(names)

	out := models.FundingFeatures{
		Exchanges: make(map[string]models.FundingExchangeStats, len(names)),
		Interval:  string(interval),
	}
	zs := make([]*float64, 0, len(names))
	latest := make([]*float64, 0, len(names))
	trends := make([]*float64, 0, len(names))
	for _, name := range names {
		st := fundingStats(byExchange[name])
		out.Exchanges[name] = st
		zs = append(zs, st.ZScore)
		latest = append(latest, st.Latest)
		trends = append(trends, st.TrendPct)
	}
	out.HeatScore = meanOf(zs)
	out.Consensus = meanOf(latest)
	out.TrendPct = meanOf(trends)

	snap.Funding = out
	return true, nil
}

// fundingStats summarizes one exchange's most-recent-first closes.
func fundingStats(values []float64) models.FundingExchangeStats {
	window := values
	if len(window) > fundingStatsWindow {
		window = window[:fundingStatsWindow]
	}
	st := models.FundingExchangeStats{
		Latest: at(values, 0),
		Mean:   mean(window),
		Std:    sampleStd(window),
		Count:  len(values),
	}
	if st.Latest != nil && st.Mean != nil && st.Std != nil && *st.Std != 0 {
		st.ZScore = ptr((*st.Latest - *st.Mean) / *st.Std)
	}
	back := len(values) - 1
	if back > fundingTrendLag {
		back = fundingTrendLag
	}
	st.TrendPct = pctChangeBack(values, back)
	return st
}
