package repository

import (
	"context"
	"errors"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"

	"github.com/sony/gobreaker"
)

// BreakerMarketData guards a MarketDataRepository with one circuit breaker.
// While open, calls fail fast with gobreaker.ErrOpenState.
type BreakerMarketData struct {
	next domrepo.MarketDataRepository
	cb   *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
	Logger      *applogger.Logger
}

func NewBreakerMarketData(next domrepo.MarketDataRepository, s BreakerSettings) *BreakerMarketData {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	st := gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		// Cancelled calls do not count as failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.Logger.Warn("circuit breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &BreakerMarketData{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the breaker state, for health checks.
func (b *BreakerMarketData) State() gobreaker.State { return b.cb.State() }

func guarded[T any](b *BreakerMarketData, fn func() ([]T, error)) ([]T, error) {
	out, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		return nil, err
	}
	return out.([]T), nil
}

func (b *BreakerMarketData) LatestFundingRates(ctx context.Context, pair string, interval domrepo.Interval, exchanges []string, limit int, asOf time.Time) ([]models.FundingRateRow, error) {
	return guarded(b, func() ([]models.FundingRateRow, error) {
		return b.next.LatestFundingRates(ctx, pair, interval, exchanges, limit, asOf)
	})
}

func (b *BreakerMarketData) LatestOpenInterest(ctx context.Context, symbol string, interval domrepo.Interval, unit string, limit int, asOf time.Time) ([]models.OpenInterestRow, error) {
	return guarded(b, func() ([]models.OpenInterestRow, error) {
		return b.next.LatestOpenInterest(ctx, symbol, interval, unit, limit, asOf)
	})
}

func (b *BreakerMarketData) LatestWhaleTransfers(ctx context.Context, symbol string, since time.Time, limit int, until time.Time) ([]models.WhaleTransferRow, error) {
	return guarded(b, func() ([]models.WhaleTransferRow, error) {
		return b.next.LatestWhaleTransfers(ctx, symbol, since, limit, until)
	})
}

func (b *BreakerMarketData) LatestEtfFlows(ctx context.Context, limit int, asOf time.Time) ([]models.EtfFlowRow, error) {
	return guarded(b, func() ([]models.EtfFlowRow, error) {
		return b.next.LatestEtfFlows(ctx, limit, asOf)
	})
}

func (b *BreakerMarketData) FearGreedHistory(ctx context.Context, limit int, asOf time.Time) ([]models.FearGreedRow, error) {
	return guarded(b, func() ([]models.FearGreedRow, error) {
		return b.next.FearGreedHistory(ctx, limit, asOf)
	})
}

func (b *BreakerMarketData) LatestSpotOrderbook(ctx context.Context, pair string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.OrderbookRow, error) {
	return guarded(b, func() ([]models.OrderbookRow, error) {
		return b.next.LatestSpotOrderbook(ctx, pair, interval, limit, asOf)
	})
}

func (b *BreakerMarketData) LatestTakerVolume(ctx context.Context, pair string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.TakerVolumeRow, error) {
	return guarded(b, func() ([]models.TakerVolumeRow, error) {
		return b.next.LatestTakerVolume(ctx, pair, interval, limit, asOf)
	})
}

func (b *BreakerMarketData) LatestPrices(ctx context.Context, pair string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.PriceRow, error) {
	return guarded(b, func() ([]models.PriceRow, error) {
		return b.next.LatestPrices(ctx, pair, interval, limit, asOf)
	})
}

func (b *BreakerMarketData) LatestLiquidations(ctx context.Context, symbol string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.LiquidationRow, error) {
	return guarded(b, func() ([]models.LiquidationRow, error) {
		return b.next.LatestLiquidations(ctx, symbol, interval, limit, asOf)
	})
}

func (b *BreakerMarketData) LatestLongShortRatio(ctx context.Context, symbol string, interval domrepo.Interval, cohort domrepo.Cohort, limit int, asOf time.Time) ([]models.LongShortRow, error) {
	return guarded(b, func() ([]models.LongShortRow, error) {
		return b.next.LatestLongShortRatio(ctx, symbol, interval, cohort, limit, asOf)
	})
}

var _ domrepo.MarketDataRepository = (*BreakerMarketData)(nil)
