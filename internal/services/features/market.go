package features

import (
	"context"
	"time"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
	"MarketSignal/pkg/util"
)

const (
	oiLimit          = 50
	oiEMAPeriod      = 6
	dayBars          = 24
	longShortStale   = 6 * time.Hour
	biasThreshold    = 0.03
	openInterestUnit = "usd"
)

func (b *Builder) openInterest(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	rows, err := b.repo.LatestOpenInterest(ctx, q.symbol, repository.Interval1h, openInterestUnit, oiLimit, q.asOf)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.Close
	}
	snap.OpenInterest = models.OpenInterestFeatures{
		Latest:       at(closes, 0),
		EMA6:         ema(reversed(closes), oiEMAPeriod),
		PctChange6h:  pctChangeBack(closes, 6),
		PctChange24h: pctChangeBack(closes, 24),
	}
	return true, nil
}

func (b *Builder) microstructure(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	book, err := b.repo.LatestSpotOrderbook(ctx, q.pair, repository.Interval1h, 1, q.asOf)
	if err != nil {
		return false, err
	}
	taker, err := b.repo.LatestTakerVolume(ctx, q.pair, repository.Interval1h, dayBars, q.asOf)
	if err != nil {
		return false, err
	}
	prices, err := b.repo.LatestPrices(ctx, q.pair, repository.Interval1h, dayBars+1, q.asOf)
	if err != nil {
		return false, err
	}
	if len(book) == 0 && len(taker) == 0 && len(prices) == 0 {
		return false, nil
	}

	var m models.MicrostructureFeatures
	if len(book) > 0 {
		bid, ask := book[0].BidDepth, book[0].AskDepth
		m.OrderbookImbalance = util.SafeDiv(ptr(bid-ask), ptr(bid+ask))
	}
	if len(taker) > 0 {
		var buy, sell float64
		for _, r := range taker {
			buy += r.BuyVolume
			sell += r.SellVolume
		}
		m.TakerBuyRatio = util.SafeDiv(ptr(buy), ptr(buy+sell))
	}
	if len(prices) > 0 {
		closes := closesOf(prices)
		m.LastPrice = at(closes, 0)
		m.PctChange24h = pctChangeBack(closes, dayBars)
		m.Volatility24h = returnsStd(closes, dayBars)
	}
	snap.Microstructure = m
	return true, nil
}

func (b *Builder) liquidations(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	rows, err := b.repo.LatestLiquidations(ctx, q.symbol, repository.Interval1h, dayBars, q.asOf)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	var longs, shorts float64
	for _, r := range rows {
		longs += r.LongUSD
		shorts += r.ShortUSD
	}
	snap.Liquidations = models.LiquidationFeatures{
		LatestLongUSD:  ptr(rows[0].LongUSD),
		LatestShortUSD: ptr(rows[0].ShortUSD),
		Long24hUSD:     ptr(longs),
		Short24hUSD:    ptr(shorts),
	}
	return true, nil
}

// longShortLookback is the number of rows spanning roughly one day.
func longShortLookback(iv repository.Interval) int {
	switch iv {
	case repository.Interval4h:
		return 6
	case repository.Interval1d:
		return 1
	default:
		return 24
	}
}

type cohortStats struct {
	net    *float64
	change *float64
	bias   string
	latest time.Time
}

func cohortOf(rows []models.LongShortRow, lookback int) *cohortStats {
	if len(rows) == 0 {
		return nil
	}
	head := rows[0]
	st := &cohortStats{
		net:    ptr(head.LongRatio - head.ShortRatio),
		latest: head.Time,
	}
	if len(rows) > lookback {
		ref := rows[lookback]
		st.change = util.SafePercentChange(
			util.SafeDiv(ptr(head.LongRatio), ptr(head.ShortRatio)),
			util.SafeDiv(ptr(ref.LongRatio), ptr(ref.ShortRatio)),
		)
	}
	st.bias = biasLabel(*st.net)
	return st
}

func biasLabel(net float64) string {
	switch {
	case net > biasThreshold:
		return models.BiasLongHeavy
	case net < -biasThreshold:
		return models.BiasShortHeavy
	default:
		return models.BiasBalanced
	}
}

func (b *Builder) longShort(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	lookback := longShortLookback(q.interval)
	globalRows, err := b.repo.LatestLongShortRatio(ctx, q.symbol, q.interval, repository.CohortGlobal, lookback+1, q.asOf)
	if err != nil {
		return false, err
	}
	topRows, err := b.repo.LatestLongShortRatio(ctx, q.symbol, q.interval, repository.CohortTop, lookback+1, q.asOf)
	if err != nil {
		return false, err
	}
	global := cohortOf(globalRows, lookback)
	top := cohortOf(topRows, lookback)
	if global == nil && top == nil {
		return false, nil
	}

	var ls models.LongShortFeatures
	var freshest time.Time
	if global != nil {
		ls.GlobalNetRatio = global.net
		ls.GlobalChange24hPct = global.change
		ls.GlobalBias = global.bias
		freshest = global.latest
	}
	if top != nil {
		ls.TopNetRatio = top.net
		ls.TopChange24hPct = top.change
		ls.TopBias = top.bias
		if top.latest.After(freshest) {
			freshest = top.latest
		}
	}
	if global != nil && top != nil {
		ls.Divergence = ptr(*top.net - *global.net)
	}
	ls.IsStale = q.asOf.Sub(freshest) > longShortStale

	snap.LongShort = ls
	return true, nil
}

func closesOf(rows []models.PriceRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close
	}
	return out
}
