// Package model trains and applies a small logistic regression over snapshot features.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/util"
)

const (
	MinExamples         = 20
	DefaultEpochs       = 300
	DefaultLearningRate = 0.01
)

type Trainer struct {
	store repository.ModelStore
	l     *applogger.Logger
	now   func() time.Time
}

func NewTrainer(store repository.ModelStore, l *applogger.Logger) *Trainer {
	return &Trainer{store: store, l: l, now: time.Now}
}

// Train fits weights by full-batch gradient descent starting from zero.
// It returns nil when fewer than MinExamples examples are given.
func (t *Trainer) Train(dataset [][]float64, labels []float64, epochs int, lr float64) *models.Model {
	n := len(dataset)
	if n < MinExamples || len(labels) != n {
		t.l.Info("not enough examples to train",
			applogger.Int("examples", n),
			applogger.Int("labels", len(labels)),
		)
		return nil
	}
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	if lr <= 0 {
		lr = DefaultLearningRate
	}

	dim := len(featureSet) + 1
	for i, x := range dataset {
		if len(x) != dim-1 {
			t.l.Warn("training row has wrong dimension", applogger.Int("row", i), applogger.Int("len", len(x)))
			return nil
		}
	}
	w := make([]float64, dim)
	grad := make([]float64, dim)
	for epoch := 0; epoch < epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		for i, x := range dataset {
			diff := util.Sigmoid(dot(w, x)) - labels[i]
			grad[0] += diff
			for j, v := range x {
				grad[j+1] += diff * v
			}
		}
		for j := range w {
			w[j] -= lr * grad[j] / float64(n)
		}
	}

	return &models.Model{
		FeatureNames: FeatureNames(),
		Weights:      w,
		TrainedAt:    t.now().UTC(),
		Epochs:       epochs,
		LearningRate: lr,
		Samples:      n,
	}
}

// Predict returns the model probability for a payload. ok is false when no
// model is stored or the payload has no usable features.
func (t *Trainer) Predict(ctx context.Context, payload *models.FeatureSnapshot) (float64, bool, error) {
	x, ok := Extract(payload)
	if !ok {
		return 0, false, nil
	}
	m, err := t.store.Load(ctx)
	if errors.Is(err, models.ErrModelNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load model: %w", err)
	}
	if len(m.Weights) != len(x)+1 {
		t.l.Warn("stored model has unexpected dimension",
			applogger.Int("weights", len(m.Weights)),
			applogger.Int("features", len(x)),
		)
		return 0, false, nil
	}
	return util.Sigmoid(dot(m.Weights, x)), true, nil
}

// Save replaces the stored model if nobody else did since expectedVersion.
func (t *Trainer) Save(ctx context.Context, m *models.Model, expectedVersion int64) (int64, error) {
	v, err := t.store.Replace(ctx, m, expectedVersion)
	if err != nil {
		return 0, err
	}
	m.Version = v
	t.l.Info("model saved",
		applogger.Int64("version", v),
		applogger.Int("samples", m.Samples),
	)
	return v, nil
}

// Current returns the stored model.
func (t *Trainer) Current(ctx context.Context) (*models.Model, error) {
	return t.store.Load(ctx)
}

// dot computes w·[1, x...].
func dot(w, x []float64) float64 {
	z := w[0]
	for j, v := range x {
		z += w[j+1] * v
	}
	return z
}
