package features

import (
	"context"
	"time"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// DegradedThreshold is the completeness below which a snapshot is degraded.
const DegradedThreshold = 0.7

var defaultExchanges = []string{"Binance", "OKX", "Bybit"}

// Builder turns repository rows into a FeatureSnapshot.
type Builder struct {
	repo      repository.MarketDataRepository
	exchanges []string
	metrics   repository.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

type Option func(*Builder)

// WithExchanges sets the funding rate venues.
func WithExchanges(exchanges []string) Option {
	return func(b *Builder) {
		if len(exchanges) > 0 {
			b.exchanges = exchanges
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(b *Builder) { b.l = l }
}

// WithClock overrides time.Now for snapshots built without an explicit timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(repo repository.MarketDataRepository, opts ...Option) *Builder {
	b := &Builder{
		repo:      repo,
		exchanges: defaultExchanges,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Request identifies the snapshot to build. A nil At means now.
type Request struct {
	Symbol   string
	Pair     string
	Interval repository.Interval
	At       *time.Time
}

type query struct {
	symbol   string
	pair     string
	interval repository.Interval
	asOf     time.Time
}

type section struct {
	name string
	run  func(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error)
}

// Build fetches all nine sections in parallel. Missing or failing upstream
// series degrade to an empty section; only a cancelled context is returned
// as an error.
func (b *Builder) Build(ctx context.Context, req Request) (*models.FeatureSnapshot, error) {
	start := time.Now()
	asOf := b.now().UTC()
	if req.At != nil {
		asOf = req.At.UTC()
	}
	if !repository.IsValidInterval(req.Interval) {
		req.Interval = repository.DefaultInterval()
	}
	if req.Pair == "" {
		req.Pair = req.Symbol + "USDT"
	}

	q := query{symbol: req.Symbol, pair: req.Pair, interval: req.Interval, asOf: asOf}
	snap := &models.FeatureSnapshot{
		Symbol:      req.Symbol,
		Pair:        req.Pair,
		Interval:    string(req.Interval),
		GeneratedAt: asOf,
	}

	sections := []section{
		{models.SectionFunding, b.funding},
		{models.SectionOpenInterest, b.openInterest},
		{models.SectionWhales, b.whales},
		{models.SectionEtf, b.etf},
		{models.SectionSentiment, b.sentiment},
		{models.SectionMicrostructure, b.microstructure},
		{models.SectionLiquidations, b.liquidations},
		{models.SectionLongShort, b.longShort},
		{models.SectionMomentum, b.momentum},
	}
	present := make([]bool, len(sections))
	errs := make([]error, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sections {
		g.Go(func() error {
			present[i], errs[i] = s.run(gctx, q, snap)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	health := &models.Health{MissingSections: []string{}}
	for i, s := range sections {
		if errs[i] != nil {
			if health.Errors == nil {
				health.Errors = make(map[string]string)
			}
			health.Errors[s.name] = errs[i].Error()
			b.l.Warn("feature section query failed",
				applogger.String("section", s.name),
				applogger.String("symbol", req.Symbol),
				applogger.Error(errs[i]),
			)
			if b.metrics != nil {
				b.metrics.RecordError("feature_" + s.name)
			}
		}
		if !present[i] {
			health.MissingSections = append(health.MissingSections, s.name)
			if b.metrics != nil {
				b.metrics.RecordSectionMissing(s.name)
			}
		}
	}
	health.Completeness = 1 - float64(len(health.MissingSections))/float64(len(sections))
	health.IsDegraded = health.Completeness < DegradedThreshold
	snap.Health = health

	if b.metrics != nil {
		b.metrics.RecordLatency("feature_build", time.Since(start).Seconds())
	}
	b.l.Debug("feature snapshot built",
		applogger.String("symbol", req.Symbol),
		applogger.String("interval", string(req.Interval)),
		applogger.Float("completeness", health.Completeness),
		applogger.Strings("missing", health.MissingSections),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return snap, nil
}
