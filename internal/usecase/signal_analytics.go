package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	"MarketSignal/internal/service/cache"
	svcmetrics "MarketSignal/internal/service/metrics"
	"MarketSignal/internal/services/features"
	applogger "MarketSignal/pkg/logger"
)

// FeatureSource builds a snapshot for one symbol.
type FeatureSource interface {
	Build(ctx context.Context, req features.Request) (*models.FeatureSnapshot, error)
}

type Scorer interface {
	Score(snap *models.FeatureSnapshot) models.SignalResult
}

type AiOverlay interface {
	Predict(ctx context.Context, payload *models.FeatureSnapshot, score *float64) (*models.AiPrediction, error)
}

// SignalBroadcaster pushes events to live subscribers without blocking.
type SignalBroadcaster interface {
	Broadcast(ev *models.SignalEvent)
}

// SignalAnalyticsUseCase runs the feature build, rule scoring and AI overlay
// for one request, then fans the result out to the event sink and live stream.
type SignalAnalyticsUseCase struct {
	builder   FeatureSource
	engine    Scorer
	ai        AiOverlay
	publisher domrepo.SignalPublisher
	hub       SignalBroadcaster
	cache     cache.BytesCache
	cacheTTL  time.Duration
	metrics   domrepo.Metrics
	timeout   time.Duration
	l         *applogger.Logger
}

type AnalyticsOption func(*SignalAnalyticsUseCase)

func WithBroadcaster(b SignalBroadcaster) AnalyticsOption {
	return func(uc *SignalAnalyticsUseCase) { uc.hub = b }
}

// WithResponseCache caches results of requests without an explicit timestamp.
func WithResponseCache(c cache.BytesCache, ttl time.Duration) AnalyticsOption {
	return func(uc *SignalAnalyticsUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

func WithAnalyticsMetrics(m domrepo.Metrics) AnalyticsOption {
	return func(uc *SignalAnalyticsUseCase) { uc.metrics = m }
}

func WithAnalyticsLogger(l *applogger.Logger) AnalyticsOption {
	return func(uc *SignalAnalyticsUseCase) { uc.l = l }
}

func WithAnalyticsTimeout(d time.Duration) AnalyticsOption {
	return func(uc *SignalAnalyticsUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

func NewSignalAnalyticsUseCase(builder FeatureSource, engine Scorer, ai AiOverlay, publisher domrepo.SignalPublisher, opts ...AnalyticsOption) *SignalAnalyticsUseCase {
	uc := &SignalAnalyticsUseCase{
		builder:   builder,
		engine:    engine,
		ai:        ai,
		publisher: publisher,
		timeout:   20 * time.Second,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type AnalyzeParams struct {
	Symbol   string
	Pair     string
	Interval domrepo.Interval
	At       *time.Time
}

func (uc *SignalAnalyticsUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalyticsResult, error) {
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	p.Pair = strings.ToUpper(strings.TrimSpace(p.Pair))
	if p.Pair == "" {
		p.Pair = p.Symbol + "USDT"
	}
	if !domrepo.IsValidInterval(p.Interval) {
		p.Interval = domrepo.DefaultInterval()
	}

	key := cache.AnalyticsKey(p.Symbol, p.Pair, string(p.Interval))
	useCache := uc.cache != nil && p.At == nil && uc.cacheTTL > 0
	if useCache {
		if res, ok := uc.cached(ctx, key); ok {
			return res, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	snap, err := uc.builder.Build(ctx, features.Request{
		Symbol:   p.Symbol,
		Pair:     p.Pair,
		Interval: p.Interval,
		At:       p.At,
	})
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}

	result := uc.engine.Score(snap)
	score := result.Score
	ai, err := uc.ai.Predict(ctx, snap, &score)
	if err != nil {
		return nil, fmt.Errorf("ai overlay: %w", err)
	}
	result.AI = ai

	if uc.metrics != nil {
		uc.metrics.RecordSignal(p.Symbol, result.Signal)
		uc.metrics.RecordLatency("signal_analytics", time.Since(start).Seconds())
	}
	uc.l.Info("signal computed",
		applogger.String("symbol", p.Symbol),
		applogger.String("interval", string(p.Interval)),
		applogger.String("signal", string(result.Signal)),
		applogger.Float("score", result.Score),
	)

	uc.emit(ctx, snap, result)

	res := &models.AnalyticsResult{
		Success:  true,
		Symbol:   p.Symbol,
		Signal:   result,
		Features: *snap,
	}
	if useCache {
		uc.store(ctx, key, res)
	}
	return res, nil
}

// emit is best-effort: a failing sink never fails the request.
func (uc *SignalAnalyticsUseCase) emit(ctx context.Context, snap *models.FeatureSnapshot, result models.SignalResult) {
	ev := &models.SignalEvent{
		Symbol:      snap.Symbol,
		Pair:        snap.Pair,
		Interval:    snap.Interval,
		GeneratedAt: snap.GeneratedAt,
		Signal:      result.Signal,
		Score:       result.Score,
		Confidence:  result.Confidence,
		Features:    *snap,
	}
	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, ev); err != nil {
			svcmetrics.PublishFailures.WithLabelValues("publisher").Inc()
			uc.l.Warn("failed to publish signal event",
				applogger.String("symbol", ev.Symbol),
				applogger.Error(err),
			)
		}
	}
	if uc.hub != nil {
		uc.hub.Broadcast(ev)
	}
}

func (uc *SignalAnalyticsUseCase) cached(ctx context.Context, key string) (*models.AnalyticsResult, bool) {
	b, ok, err := uc.cache.GetBytes(ctx, key)
	if err != nil {
		svcmetrics.CacheLookups.WithLabelValues(svcmetrics.CacheError).Inc()
		uc.l.Warn("analytics cache read failed", applogger.String("key", key), applogger.Error(err))
		return nil, false
	}
	if !ok {
		svcmetrics.CacheLookups.WithLabelValues(svcmetrics.CacheMiss).Inc()
		return nil, false
	}
	var res models.AnalyticsResult
	if err := json.Unmarshal(b, &res); err != nil {
		svcmetrics.CacheLookups.WithLabelValues(svcmetrics.CacheError).Inc()
		uc.l.Warn("analytics cache entry corrupt", applogger.String("key", key), applogger.Error(err))
		return nil, false
	}
	svcmetrics.CacheLookups.WithLabelValues(svcmetrics.CacheHit).Inc()
	return &res, true
}

func (uc *SignalAnalyticsUseCase) store(ctx context.Context, key string, res *models.AnalyticsResult) {
	b, err := json.Marshal(res)
	if err != nil {
		uc.l.Warn("analytics cache encode failed", applogger.Error(err))
		return
	}
	if err := uc.cache.SetBytes(ctx, key, b, uc.cacheTTL); err != nil {
		uc.l.Warn("analytics cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}
