package features

import (
	"context"
	"sync"
	"time"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
)

type fakeRepo struct {
	mu        sync.Mutex
	fundingBy map[repository.Interval][]models.FundingRateRow
	fundingQ  []repository.Interval
	oi        []models.OpenInterestRow
	whales    []models.WhaleTransferRow
	etf       []models.EtfFlowRow
	fear      []models.FearGreedRow
	book      []models.OrderbookRow
	taker     []models.TakerVolumeRow
	prices    []models.PriceRow
	liq       []models.LiquidationRow
	lsGlobal  []models.LongShortRow
	lsTop     []models.LongShortRow
	failWith  error
}

func limited[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func (f *fakeRepo) LatestFundingRates(_ context.Context, _ string, iv repository.Interval, _ []string, limit int, _ time.Time) ([]models.FundingRateRow, error) {
	f.mu.Lock()
	f.fundingQ = append(f.fundingQ, iv)
	f.mu.Unlock()
	return limited(f.fundingBy[iv], limit), nil
}

func (f *fakeRepo) LatestOpenInterest(_ context.Context, _ string, _ repository.Interval, _ string, limit int, _ time.Time) ([]models.OpenInterestRow, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return limited(f.oi, limit), nil
}

func (f *fakeRepo) LatestWhaleTransfers(_ context.Context, _ string, _ time.Time, limit int, _ time.Time) ([]models.WhaleTransferRow, error) {
	return limited(f.whales, limit), nil
}

func (f *fakeRepo) LatestEtfFlows(_ context.Context, limit int, _ time.Time) ([]models.EtfFlowRow, error) {
	return limited(f.etf, limit), nil
}

func (f *fakeRepo) FearGreedHistory(_ context.Context, limit int, _ time.Time) ([]models.FearGreedRow, error) {
	return limited(f.fear, limit), nil
}

func (f *fakeRepo) LatestSpotOrderbook(_ context.Context, _ string, _ repository.Interval, limit int, _ time.Time) ([]models.OrderbookRow, error) {
	return limited(f.book, limit), nil
}

func (f *fakeRepo) LatestTakerVolume(_ context.Context, _ string, _ repository.Interval, limit int, _ time.Time) ([]models.TakerVolumeRow, error) {
	return limited(f.taker, limit), nil
}

func (f *fakeRepo) LatestPrices(_ context.Context, _ string, _ repository.Interval, limit int, _ time.Time) ([]models.PriceRow, error) {
	return limited(f.prices, limit), nil
}

func (f *fakeRepo) LatestLiquidations(_ context.Context, _ string, _ repository.Interval, limit int, _ time.Time) ([]models.LiquidationRow, error) {
	return limited(f.liq, limit), nil
}

func (f *fakeRepo) LatestLongShortRatio(_ context.Context, _ string, _ repository.Interval, cohort repository.Cohort, limit int, _ time.Time) ([]models.LongShortRow, error) {
	if cohort == repository.CohortTop {
		return limited(f.lsTop, limit), nil
	}
	return limited(f.lsGlobal, limit), nil
}

// hourlyPrices builds n descending hourly bars ending at end, newest close first.
func hourlyPrices(end time.Time, closes ...float64) []models.PriceRow {
	rows := make([]models.PriceRow, len(closes))
	for i, c := range closes {
		rows[i] = models.PriceRow{Time: end.Add(-time.Duration(i) * time.Hour), High: c * 1.01, Low: c * 0.99, Close: c}
	}
	return rows
}
