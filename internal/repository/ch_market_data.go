package repository

import (
	"context"
	"fmt"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// CHMarketData reads normalized market series from ClickHouse.
type CHMarketData struct {
	db *sqlx.DB
	l  *applogger.Logger
}

func NewCHMarketData(db *sqlx.DB) *CHMarketData {
	return &CHMarketData{db: db}
}

// SetLogger injects a structured logger.
func (r *CHMarketData) SetLogger(l *applogger.Logger) { r.l = l }

const (
	qFunding = `
        SELECT exchange, time, close
        FROM funding_rate_history
        WHERE pair = ? AND timeframe = ? AND exchange IN (?) AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qOpenInterest = `
        SELECT time, close
        FROM open_interest_history
        WHERE symbol = ? AND timeframe = ? AND unit = ? AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qWhales = `
        SELECT time, symbol, amount_usd, from_owner, to_owner
        FROM whale_transfers
        WHERE symbol = ? AND time >= ? AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qEtf = `
        SELECT date, net_flow_usd
        FROM etf_flow_history
        WHERE date <= ?
        ORDER BY date DESC
        LIMIT ?`
	qFearGreed = `
        SELECT time, value, classification
        FROM fear_greed_history
        WHERE time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qOrderbook = `
        SELECT time, bid_depth, ask_depth
        FROM spot_orderbook_history
        WHERE pair = ? AND timeframe = ? AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qTaker = `
        SELECT time, buy_volume, sell_volume
        FROM spot_taker_volume_history
        WHERE pair = ? AND timeframe = ? AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qPrices = `
        SELECT time, high, low, close
        FROM spot_price_history
        WHERE pair = ? AND timeframe = ? AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qLiquidations = `
        SELECT time, long_usd, short_usd
        FROM liquidation_history
        WHERE symbol = ? AND timeframe = ? AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
	qLongShort = `
        SELECT time, long_ratio, short_ratio
        FROM long_short_ratio_history
        WHERE symbol = ? AND timeframe = ? AND cohort = ? AND time <= ?
        ORDER BY time DESC
        LIMIT ?`
)

// LatestFundingRates returns the latest limit rows across all exchanges.
func (r *CHMarketData) LatestFundingRates(ctx context.Context, pair string, interval domrepo.Interval, exchanges []string, limit int, asOf time.Time) ([]models.FundingRateRow, error) {
	if len(exchanges) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(qFunding, pair, string(interval), exchanges, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("funding rates: %w", err)
	}
	var out []models.FundingRateRow
	if err := r.sel(ctx, "funding_rates", &out, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestOpenInterest(ctx context.Context, symbol string, interval domrepo.Interval, unit string, limit int, asOf time.Time) ([]models.OpenInterestRow, error) {
	var out []models.OpenInterestRow
	if err := r.sel(ctx, "open_interest", &out, qOpenInterest, symbol, string(interval), unit, asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestWhaleTransfers(ctx context.Context, symbol string, since time.Time, limit int, until time.Time) ([]models.WhaleTransferRow, error) {
	var out []models.WhaleTransferRow
	if err := r.sel(ctx, "whale_transfers", &out, qWhales, symbol, since, until, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestEtfFlows(ctx context.Context, limit int, asOf time.Time) ([]models.EtfFlowRow, error) {
	var out []models.EtfFlowRow
	if err := r.sel(ctx, "etf_flows", &out, qEtf, asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) FearGreedHistory(ctx context.Context, limit int, asOf time.Time) ([]models.FearGreedRow, error) {
	var out []models.FearGreedRow
	if err := r.sel(ctx, "fear_greed", &out, qFearGreed, asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestSpotOrderbook(ctx context.Context, pair string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.OrderbookRow, error) {
	var out []models.OrderbookRow
	if err := r.sel(ctx, "spot_orderbook", &out, qOrderbook, pair, string(interval), asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestTakerVolume(ctx context.Context, pair string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.TakerVolumeRow, error) {
	var out []models.TakerVolumeRow
	if err := r.sel(ctx, "taker_volume", &out, qTaker, pair, string(interval), asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestPrices(ctx context.Context, pair string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.PriceRow, error) {
	var out []models.PriceRow
	if err := r.sel(ctx, "prices", &out, qPrices, pair, string(interval), asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestLiquidations(ctx context.Context, symbol string, interval domrepo.Interval, limit int, asOf time.Time) ([]models.LiquidationRow, error) {
	var out []models.LiquidationRow
	if err := r.sel(ctx, "liquidations", &out, qLiquidations, symbol, string(interval), asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) LatestLongShortRatio(ctx context.Context, symbol string, interval domrepo.Interval, cohort domrepo.Cohort, limit int, asOf time.Time) ([]models.LongShortRow, error) {
	var out []models.LongShortRow
	if err := r.sel(ctx, "long_short_ratio", &out, qLongShort, symbol, string(interval), string(cohort), asOf, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CHMarketData) sel(ctx context.Context, op string, dest any, query string, args ...any) error {
	start := time.Now()
	if err := r.db.SelectContext(ctx, dest, query, args...); err != nil {
		if r.l != nil {
			r.l.Error("clickhouse select error",
				applogger.String("op", op),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if r.l != nil {
		r.l.Debug("clickhouse select ok",
			applogger.String("op", op),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

var _ domrepo.MarketDataRepository = (*CHMarketData)(nil)
