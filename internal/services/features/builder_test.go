package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func build(t *testing.T, repo *fakeRepo, iv repository.Interval) *models.FeatureSnapshot {
	t.Helper()
	b := NewBuilder(repo)
	ts := asOf
	snap, err := b.Build(context.Background(), Request{Symbol: "BTC", Pair: "BTCUSDT", Interval: iv, At: &ts})
	require.NoError(t, err)
	require.NotNil(t, snap.Health)
	return snap
}

func TestBuildEmptyRepositoryMarksEverySectionMissing(t *testing.T) {
	snap := build(t, &fakeRepo{}, repository.Interval1h)

	assert.Equal(t, models.Sections, snap.Health.MissingSections)
	assert.Equal(t, 0.0, snap.Health.Completeness)
	assert.True(t, snap.Health.IsDegraded)
	assert.Equal(t, models.FundingFeatures{}, snap.Funding)
	assert.Equal(t, models.MomentumFeatures{}, snap.Momentum)
	assert.Equal(t, asOf, snap.GeneratedAt)
}

func TestBuildCompletenessInvariant(t *testing.T) {
	repo := &fakeRepo{
		fear: []models.FearGreedRow{{Time: asOf, Value: 55, Classification: "Greed"}},
		etf:  []models.EtfFlowRow{{Date: asOf, NetFlowUSD: 1e6}},
		liq:  []models.LiquidationRow{{Time: asOf, LongUSD: 10, ShortUSD: 5}},
	}
	snap := build(t, repo, repository.Interval1h)

	missing := len(snap.Health.MissingSections)
	assert.Equal(t, 6, missing)
	assert.InDelta(t, 1-float64(missing)/9, snap.Health.Completeness, 1e-12)
	assert.Equal(t, snap.Health.Completeness < 0.7, snap.Health.IsDegraded)
	assert.NotContains(t, snap.Health.MissingSections, models.SectionSentiment)
}

func TestBuildEightSectionsIsNotDegraded(t *testing.T) {
	repo := &fakeRepo{
		fear:   []models.FearGreedRow{{Time: asOf, Value: 55}},
		etf:    []models.EtfFlowRow{{Date: asOf, NetFlowUSD: 1e6}},
		liq:    []models.LiquidationRow{{Time: asOf, LongUSD: 10, ShortUSD: 5}},
		prices: hourlyPrices(asOf, 100, 99),
		oi:     []models.OpenInterestRow{{Time: asOf, Close: 1}},
		whales: []models.WhaleTransferRow{{Time: asOf, AmountUSD: 1e6, ToOwner: "Binance"}},
		lsTop:  []models.LongShortRow{{Time: asOf, LongRatio: 0.5, ShortRatio: 0.5}},
	}
	snap := build(t, repo, repository.Interval1h)

	assert.ElementsMatch(t, []string{models.SectionFunding}, snap.Health.MissingSections)
	assert.InDelta(t, 8.0/9, snap.Health.Completeness, 1e-12)
	assert.False(t, snap.Health.IsDegraded)
}

func TestBuildRecordsRepositoryErrors(t *testing.T) {
	repo := &fakeRepo{failWith: errors.New("clickhouse down")}
	snap := build(t, repo, repository.Interval1h)

	assert.Contains(t, snap.Health.MissingSections, models.SectionOpenInterest)
	assert.Equal(t, "clickhouse down", snap.Health.Errors[models.SectionOpenInterest])
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(&fakeRepo{}).Build(ctx, Request{Symbol: "BTC", Interval: repository.Interval1h})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFundingFallsBackToFinerInterval(t *testing.T) {
	repo := &fakeRepo{fundingBy: map[repository.Interval][]models.FundingRateRow{
		repository.Interval1h: {
			{Exchange: "Binance", Time: asOf, Close: 0.02},
			{Exchange: "Binance", Time: asOf.Add(-time.Hour), Close: 0.01},
		},
	}}
	snap := build(t, repo, repository.Interval4h)

	assert.Equal(t, []repository.Interval{repository.Interval4h, repository.Interval1h}, repo.fundingQ)
	assert.Equal(t, "1h", snap.Funding.Interval)
	require.NotNil(t, snap.Funding.TrendPct)
	assert.InDelta(t, 100.0, *snap.Funding.TrendPct, 1e-9)
}

func TestFundingStats(t *testing.T) {
	st := fundingStats([]float64{4, 2, 2, 2, 2})
	require.NotNil(t, st.Mean)
	require.NotNil(t, st.Std)
	require.NotNil(t, st.ZScore)
	assert.InDelta(t, 2.4, *st.Mean, 1e-12)
	assert.InDelta(t, 0.894427191, *st.Std, 1e-9)
	assert.InDelta(t, (4-2.4)/0.894427191, *st.ZScore, 1e-6)
	// index min(n-1, 3) back
	assert.InDelta(t, 100.0, *st.TrendPct, 1e-12)

	flat := fundingStats([]float64{0.01, 0.01, 0.01})
	assert.Nil(t, flat.ZScore)

	single := fundingStats([]float64{0.01})
	assert.Nil(t, single.Std)
	assert.Nil(t, single.ZScore)
	assert.InDelta(t, 0.0, *single.TrendPct, 1e-12)
}

func TestFundingAggregatesAcrossExchanges(t *testing.T) {
	repo := &fakeRepo{fundingBy: map[repository.Interval][]models.FundingRateRow{
		repository.Interval1h: {
			{Exchange: "Binance", Close: 0.03},
			{Exchange: "OKX", Close: 0.01},
			{Exchange: "Binance", Close: 0.01},
			{Exchange: "OKX", Close: 0.01},
		},
	}}
	snap := build(t, repo, repository.Interval1h)

	require.Len(t, snap.Funding.Exchanges, 2)
	assert.InDelta(t, 0.02, *snap.Funding.Consensus, 1e-12)
	assert.InDelta(t, 100.0, *snap.Funding.TrendPct, 1e-12) // (200 + 0) / 2
	// OKX has zero std so only Binance contributes a z-score
	assert.InDelta(t, *snap.Funding.Exchanges["Binance"].ZScore, *snap.Funding.HeatScore, 1e-12)
}

func TestWhalePressureAndStaleness(t *testing.T) {
	repo := &fakeRepo{whales: []models.WhaleTransferRow{
		{Time: asOf.Add(-2 * time.Hour), AmountUSD: 70e6, FromOwner: "unknown", ToOwner: "Binance"},
		{Time: asOf.Add(-3 * time.Hour), AmountUSD: 10e6, FromOwner: "Coinbase Institutional", ToOwner: "unknown"},
		{Time: asOf.Add(-72 * time.Hour), AmountUSD: 60e6, FromOwner: "Kraken", ToOwner: "unknown"},
		{Time: asOf.Add(-80 * time.Hour), AmountUSD: 5e6, FromOwner: "unknown", ToOwner: "unknown"},
	}}
	snap := build(t, repo, repository.Interval1h)
	w := snap.Whales

	assert.False(t, w.IsStale)
	assert.Equal(t, 2, w.Transfers24h)
	assert.Equal(t, 4, w.Transfers7d)
	assert.InDelta(t, 60e6, *w.Net24h, 1e-6)
	// avg daily magnitude = (70+10+60)/7 = 20M
	assert.InDelta(t, 3.0, *w.PressureScore, 1e-12)
	assert.InDelta(t, 0.875, *w.CexRatio, 1e-12)
}

func TestWhaleStaleWindowStillScores(t *testing.T) {
	repo := &fakeRepo{whales: []models.WhaleTransferRow{
		{Time: asOf.Add(-48 * time.Hour), AmountUSD: 1e6, FromOwner: "unknown", ToOwner: "OKX"},
	}}
	snap := build(t, repo, repository.Interval1h)

	assert.True(t, snap.Whales.IsStale)
	require.NotNil(t, snap.Whales.PressureScore)
	assert.Equal(t, 0.0, *snap.Whales.PressureScore)
	assert.Nil(t, snap.Whales.CexRatio)
}

func TestFlowStreak(t *testing.T) {
	cases := []struct {
		name string
		asc  []float64
		want int
	}{
		{"empty", nil, 0},
		{"three inflows", []float64{1, 2, 3}, 3},
		{"flip to outflow", []float64{1, 2, -1, -4}, -2},
		{"zero breaks", []float64{5, 5, 0}, 0},
		{"restart after zero", []float64{-1, 0, 2}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, flowStreak(tc.asc))
		})
	}
}

func TestEtfSection(t *testing.T) {
	rows := make([]models.EtfFlowRow, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, models.EtfFlowRow{Date: asOf.AddDate(0, 0, -i), NetFlowUSD: float64(10 - i)})
	}
	snap := build(t, &fakeRepo{etf: rows}, repository.Interval1d)

	assert.InDelta(t, 10.0, *snap.Etf.LatestFlow, 1e-12)
	assert.InDelta(t, 7.0, *snap.Etf.MA7, 1e-12)
	assert.InDelta(t, 5.5, *snap.Etf.MA30, 1e-12)
	assert.Equal(t, 10, *snap.Etf.Streak)
}

func TestOpenInterestChanges(t *testing.T) {
	rows := make([]models.OpenInterestRow, 30)
	for i := range rows {
		rows[i] = models.OpenInterestRow{Time: asOf.Add(-time.Duration(i) * time.Hour), Close: 100}
	}
	rows[0].Close = 110
	snap := build(t, &fakeRepo{oi: rows}, repository.Interval1h)

	assert.InDelta(t, 10.0, *snap.OpenInterest.PctChange6h, 1e-9)
	assert.InDelta(t, 10.0, *snap.OpenInterest.PctChange24h, 1e-9)
	// seed 100, only the last value moves: 110*k + 100*(1-k), k = 2/7
	assert.InDelta(t, 100+10*2.0/7, *snap.OpenInterest.EMA6, 1e-9)
}

func TestMicrostructure(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	closes[0] = 103
	repo := &fakeRepo{
		book:   []models.OrderbookRow{{Time: asOf, BidDepth: 60, AskDepth: 40}},
		taker:  []models.TakerVolumeRow{{BuyVolume: 3, SellVolume: 1}, {BuyVolume: 1, SellVolume: 3}, {BuyVolume: 2, SellVolume: 0}},
		prices: hourlyPrices(asOf, closes...),
	}
	snap := build(t, repo, repository.Interval1h)
	m := snap.Microstructure

	assert.InDelta(t, 0.2, *m.OrderbookImbalance, 1e-12)
	assert.InDelta(t, 0.6, *m.TakerBuyRatio, 1e-12)
	assert.InDelta(t, 3.0, *m.PctChange24h, 1e-9)
	require.NotNil(t, m.Volatility24h)
	assert.Greater(t, *m.Volatility24h, 0.0)
	assert.Equal(t, 103.0, *m.LastPrice)
}

func TestLongShortSection(t *testing.T) {
	global := make([]models.LongShortRow, 25)
	top := make([]models.LongShortRow, 25)
	for i := range global {
		ts := asOf.Add(-time.Duration(i+7) * time.Hour)
		global[i] = models.LongShortRow{Time: ts, LongRatio: 0.5, ShortRatio: 0.5}
		top[i] = models.LongShortRow{Time: ts, LongRatio: 0.5, ShortRatio: 0.5}
	}
	global[0] = models.LongShortRow{Time: asOf.Add(-7 * time.Hour), LongRatio: 0.6, ShortRatio: 0.4}
	top[0] = models.LongShortRow{Time: asOf.Add(-7 * time.Hour), LongRatio: 0.45, ShortRatio: 0.55}

	snap := build(t, &fakeRepo{lsGlobal: global, lsTop: top}, repository.Interval1h)
	ls := snap.LongShort

	assert.InDelta(t, 0.2, *ls.GlobalNetRatio, 1e-12)
	assert.Equal(t, models.BiasLongHeavy, ls.GlobalBias)
	assert.Equal(t, models.BiasShortHeavy, ls.TopBias)
	assert.InDelta(t, -0.3, *ls.Divergence, 1e-12)
	assert.InDelta(t, 50.0, *ls.GlobalChange24hPct, 1e-9)
	assert.True(t, ls.IsStale)
}

func TestLongShortLookback(t *testing.T) {
	assert.Equal(t, 6, longShortLookback(repository.Interval4h))
	assert.Equal(t, 1, longShortLookback(repository.Interval1d))
	assert.Equal(t, 24, longShortLookback(repository.Interval1h))
}

func TestMomentumTrendAndRange(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	closes[0] = 104
	snap := build(t, &fakeRepo{prices: hourlyPrices(asOf, closes...)}, repository.Interval1h)
	m := snap.Momentum

	assert.InDelta(t, 4.0, *m.Change1h, 1e-9)
	assert.InDelta(t, 4.0, *m.Change1d, 1e-9)
	assert.Nil(t, m.Change7d)
	// weights of available horizons renormalize, so the score equals the common move
	assert.InDelta(t, 4.0, *m.TrendScore, 1e-9)
	assert.Equal(t, models.RegimeBullTrend, m.Regime)
	require.NotNil(t, m.Range)
	assert.InDelta(t, 104*1.01, m.Range.High, 1e-9)
	assert.InDelta(t, 99.0, m.Range.Low, 1e-9)
}

func TestClassifyRegime(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		trend, vol *float64
		want       string
	}{
		{f(1.5), f(10), models.RegimeBullTrend},
		{f(-1.5), nil, models.RegimeBearTrend},
		{f(0.5), f(5.1), models.RegimeHighVolChop},
		{f(1.2), f(6), models.RegimeRange},
		{nil, nil, models.RegimeUnknown},
		{nil, f(8), models.RegimeRange},
	}
	for _, tc := range cases {
		got, _ := classifyRegime(tc.trend, tc.vol)
		assert.Equal(t, tc.want, got)
	}
}
