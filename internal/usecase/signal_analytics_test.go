package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	"MarketSignal/internal/service/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buyResult() models.SignalResult {
	return models.SignalResult{
		Signal:     models.SignalBuy,
		Score:      2.5,
		Confidence: 0.5,
		Reasons:    []string{"Funding reset"},
	}
}

func TestAnalyze_FullPipeline(t *testing.T) {
	b := &fakeBuilder{}
	ai := &fakeOverlay{pred: &models.AiPrediction{Probability: 0.7, Decision: models.SignalBuy, Source: models.AiSourceModel}}
	pub := &recordingPublisher{}
	hub := &recordingHub{}
	m := &countingMetrics{}
	uc := NewSignalAnalyticsUseCase(b, fixedScorer{buyResult()}, ai, pub,
		WithBroadcaster(hub), WithAnalyticsMetrics(m))

	res, err := uc.Analyze(context.Background(), AnalyzeParams{Symbol: " btc "})
	require.NoError(t, err)

	require.Len(t, b.calls, 1)
	assert.Equal(t, "BTC", b.calls[0].Symbol)
	assert.Equal(t, "BTCUSDT", b.calls[0].Pair)
	assert.Equal(t, domrepo.Interval1h, b.calls[0].Interval)

	assert.True(t, res.Success)
	assert.Equal(t, "BTC", res.Symbol)
	assert.Equal(t, models.SignalBuy, res.Signal.Signal)
	require.NotNil(t, res.Signal.AI)
	assert.Equal(t, 0.7, res.Signal.AI.Probability)
	require.NotNil(t, ai.seen)
	assert.Equal(t, 2.5, *ai.seen)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "BTC", ev.Symbol)
	assert.Equal(t, 2.5, ev.Score)
	assert.Equal(t, t0, ev.GeneratedAt)
	require.Len(t, hub.events, 1)
	assert.Same(t, ev, hub.events[0])
	assert.Equal(t, models.SignalBuy, m.signals["BTC"])
}

func TestAnalyze_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("kafka down")}
	uc := NewSignalAnalyticsUseCase(&fakeBuilder{}, fixedScorer{buyResult()}, &fakeOverlay{}, pub)

	res, err := uc.Analyze(context.Background(), AnalyzeParams{Symbol: "ETH", Interval: domrepo.Interval4h})
	require.NoError(t, err)
	assert.Equal(t, "4h", res.Features.Interval)
	assert.Nil(t, res.Signal.AI)
}

func TestAnalyze_CachesOnlyLiveRequests(t *testing.T) {
	b := &fakeBuilder{}
	pub := &recordingPublisher{}
	uc := NewSignalAnalyticsUseCase(b, fixedScorer{buyResult()}, &fakeOverlay{}, pub,
		WithResponseCache(cache.NewTTLCache(), time.Minute))

	first, err := uc.Analyze(context.Background(), AnalyzeParams{Symbol: "BTC"})
	require.NoError(t, err)
	second, err := uc.Analyze(context.Background(), AnalyzeParams{Symbol: "btc"})
	require.NoError(t, err)
	assert.Len(t, b.calls, 1)
	assert.Len(t, pub.events, 1)
	assert.Equal(t, first.Signal.Score, second.Signal.Score)
	assert.Equal(t, first.Features.Pair, second.Features.Pair)

	at := t0.Add(-time.Hour)
	_, err = uc.Analyze(context.Background(), AnalyzeParams{Symbol: "BTC", At: &at})
	require.NoError(t, err)
	_, err = uc.Analyze(context.Background(), AnalyzeParams{Symbol: "BTC", At: &at})
	require.NoError(t, err)
	assert.Len(t, b.calls, 3)
}

func TestAnalyze_Errors(t *testing.T) {
	uc := NewSignalAnalyticsUseCase(&fakeBuilder{}, fixedScorer{buyResult()}, &fakeOverlay{}, nil)
	_, err := uc.Analyze(context.Background(), AnalyzeParams{Symbol: "  "})
	assert.Error(t, err)

	cancelled := NewSignalAnalyticsUseCase(&fakeBuilder{err: context.Canceled}, fixedScorer{}, &fakeOverlay{}, nil)
	_, err = cancelled.Analyze(context.Background(), AnalyzeParams{Symbol: "BTC"})
	assert.ErrorIs(t, err, context.Canceled)

	storeDown := errors.New("redis down")
	aiFails := NewSignalAnalyticsUseCase(&fakeBuilder{}, fixedScorer{}, &fakeOverlay{err: storeDown}, nil)
	_, err = aiFails.Analyze(context.Background(), AnalyzeParams{Symbol: "BTC"})
	assert.ErrorIs(t, err, storeDown)
}
