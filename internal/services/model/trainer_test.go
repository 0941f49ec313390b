package model

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

// separable returns n snapshots whose label is the sign of funding heat.
func separable(n int) ([]*models.FeatureSnapshot, []float64) {
	rng := rand.New(rand.NewSource(7))
	snaps := make([]*models.FeatureSnapshot, n)
	labels := make([]float64, n)
	for i := range snaps {
		heat := rng.Float64()*4 + 0.5
		if i%2 == 0 {
			heat = -heat
		}
		snaps[i] = &models.FeatureSnapshot{
			Funding:      models.FundingFeatures{HeatScore: f(heat)},
			OpenInterest: models.OpenInterestFeatures{PctChange24h: f(heat * 2)},
		}
		if heat > 0 {
			labels[i] = 1
		}
	}
	return snaps, labels
}

func dataset(t *testing.T, snaps []*models.FeatureSnapshot) [][]float64 {
	t.Helper()
	out := make([][]float64, len(snaps))
	for i, s := range snaps {
		x, ok := Extract(s)
		require.True(t, ok)
		out[i] = x
	}
	return out
}

func TestTrainRequiresTwentyExamples(t *testing.T) {
	tr := NewTrainer(repository.NewMemoryModelStore(), nil)
	snaps, labels := separable(19)
	assert.Nil(t, tr.Train(dataset(t, snaps), labels, 10, 0.1))
}

func TestTrainThenPredictSeparatesClasses(t *testing.T) {
	store := repository.NewMemoryModelStore()
	tr := NewTrainer(store, nil)
	snaps, labels := separable(40)

	m := tr.Train(dataset(t, snaps), labels, 0, 0)
	require.NotNil(t, m)
	assert.Len(t, m.Weights, 12)
	assert.Equal(t, FeatureNames(), m.FeatureNames)
	assert.Equal(t, DefaultEpochs, m.Epochs)
	assert.Equal(t, DefaultLearningRate, m.LearningRate)

	_, err := tr.Save(context.Background(), m, 0)
	require.NoError(t, err)

	agree := 0
	for i, s := range snaps {
		p, ok, err := tr.Predict(context.Background(), s)
		require.NoError(t, err)
		require.True(t, ok)
		if (p > 0.5) == (labels[i] == 1) {
			agree++
		}
	}
	assert.GreaterOrEqual(t, agree, 36)
}

func TestPredictWithoutModel(t *testing.T) {
	tr := NewTrainer(repository.NewMemoryModelStore(), nil)
	_, ok, err := tr.Predict(context.Background(), &models.FeatureSnapshot{Funding: models.FundingFeatures{HeatScore: f(1)}})
	assert.NoError(t, err)
	assert.False(t, ok)
}

type failingStore struct{}

func (failingStore) Load(context.Context) (*models.Model, error) { return nil, errors.New("redis down") }
func (failingStore) Replace(context.Context, *models.Model, int64) (int64, error) {
	return 0, errors.New("redis down")
}

func TestPredictPropagatesStoreErrors(t *testing.T) {
	tr := NewTrainer(failingStore{}, nil)
	_, ok, err := tr.Predict(context.Background(), &models.FeatureSnapshot{Funding: models.FundingFeatures{HeatScore: f(1)}})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestExtract(t *testing.T) {
	_, ok := Extract(&models.FeatureSnapshot{Sentiment: models.SentimentFeatures{Value: f(50)}})
	assert.False(t, ok)

	streak := -5
	snap := &models.FeatureSnapshot{
		Whales:       models.WhaleFeatures{PressureScore: f(1.5), CexRatio: f(0.7)},
		Etf:          models.EtfFeatures{LatestFlow: f(2e8), Streak: &streak},
		Sentiment:    models.SentimentFeatures{Value: f(80)},
		Liquidations: models.LiquidationFeatures{Long24hUSD: f(30), Short24hUSD: f(10)},
		Momentum:     models.MomentumFeatures{Volatility: f(4)},
	}
	x, ok := Extract(snap)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0, 0.5, 0.7, 2, -0.5, 0.8, 0, -0.5, 0.4}, x)
}

func TestSaveDetectsConcurrentWriter(t *testing.T) {
	store := repository.NewMemoryModelStore()
	tr := NewTrainer(store, nil)
	snaps, labels := separable(20)
	m := tr.Train(dataset(t, snaps), labels, 5, 0.1)
	require.NotNil(t, m)

	v, err := tr.Save(context.Background(), m, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = tr.Save(context.Background(), m, 0)
	assert.ErrorIs(t, err, models.ErrVersionConflict)
}
