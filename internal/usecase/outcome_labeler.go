package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/util"
)

const defaultLabelBatch = 500

// OutcomeLabeler fills the realized outcome of snapshots whose horizon has passed.
type OutcomeLabeler struct {
	store    domrepo.SnapshotStore
	prices   domrepo.MarketDataRepository
	interval domrepo.Interval
	batch    int
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewOutcomeLabeler(store domrepo.SnapshotStore, prices domrepo.MarketDataRepository, interval domrepo.Interval, metrics domrepo.Metrics, l *applogger.Logger) *OutcomeLabeler {
	if !domrepo.IsValidInterval(interval) {
		interval = domrepo.DefaultInterval()
	}
	return &OutcomeLabeler{
		store:    store,
		prices:   prices,
		interval: interval,
		batch:    defaultLabelBatch,
		metrics:  metrics,
		l:        l,
	}
}

type LabelStats struct {
	Scanned  int `json:"scanned"`
	Labelled int `json:"labelled"`
	Skipped  int `json:"skipped"`
}

// LabelMatured labels every pending snapshot of symbol generated at or
// before now-horizon. Snapshots without a usable price are left pending.
func (o *OutcomeLabeler) LabelMatured(ctx context.Context, symbol string, horizon time.Duration, now time.Time) (LabelStats, error) {
	var stats LabelStats
	start := time.Now()
	if horizon <= 0 {
		return stats, fmt.Errorf("horizon must be positive")
	}
	symbol = strings.ToUpper(symbol)
	pending, err := o.store.ListPending(ctx, symbol, now.Add(-horizon), o.batch)
	if err != nil {
		return stats, fmt.Errorf("list pending snapshots: %w", err)
	}

	for i := range pending {
		s := &pending[i]
		stats.Scanned++
		if s.HasOutcome() || s.PriceAtSignal == nil || *s.PriceAtSignal == 0 {
			stats.Skipped++
			continue
		}
		future, err := o.priceAt(ctx, s, s.GeneratedAt.Add(horizon))
		if err != nil {
			return stats, err
		}
		if future == nil {
			stats.Skipped++
			continue
		}

		pct := util.SafePercentChange(future, s.PriceAtSignal)
		if pct == nil {
			stats.Skipped++
			continue
		}
		magnitude := util.Round(*pct, 4)
		s.PriceFuture = future
		s.LabelMagnitude = &magnitude
		s.LabelDirection = models.DirectionUp
		if magnitude < 0 {
			s.LabelDirection = models.DirectionDown
		}
		if err := o.store.SaveOutcome(ctx, s); err != nil {
			return stats, fmt.Errorf("save outcome %s: %w", s.ID, err)
		}
		stats.Labelled++
	}

	if o.metrics != nil {
		o.metrics.RecordLatency("outcome_labelling", time.Since(start).Seconds())
	}
	o.l.Info("outcome labelling finished",
		applogger.String("symbol", symbol),
		applogger.Int("scanned", stats.Scanned),
		applogger.Int("labelled", stats.Labelled),
		applogger.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// priceAt returns the close of the latest bar at or before asOf, provided it
// is newer than the snapshot itself.
func (o *OutcomeLabeler) priceAt(ctx context.Context, s *models.SignalSnapshot, asOf time.Time) (*float64, error) {
	pair := s.Features.Pair
	if pair == "" {
		pair = s.Symbol + "USDT"
	}
	rows, err := o.prices.LatestPrices(ctx, pair, o.interval, 1, asOf)
	if err != nil {
		return nil, fmt.Errorf("latest price %s: %w", pair, err)
	}
	if len(rows) == 0 || !rows[0].Time.After(s.GeneratedAt) {
		o.l.Debug("no matured price for snapshot",
			applogger.String("id", s.ID),
			applogger.String("pair", pair),
		)
		return nil, nil
	}
	price := rows[0].Close
	return &price, nil
}

// Loop labels every symbol once, then again on each tick until ctx is done.
// Failures are logged and retried on the next tick.
func (o *OutcomeLabeler) Loop(ctx context.Context, symbols []string, horizon, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		for _, sym := range symbols {
			if ctx.Err() != nil {
				return
			}
			if _, err := o.LabelMatured(ctx, sym, horizon, time.Now().UTC()); err != nil {
				o.l.Error("outcome labelling failed", applogger.String("symbol", sym), applogger.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
