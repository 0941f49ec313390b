package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	"MarketSignal/internal/services/model"
	applogger "MarketSignal/pkg/logger"
)

// ModelTrainer is the part of model.Trainer the use case drives.
type ModelTrainer interface {
	Train(dataset [][]float64, labels []float64, epochs int, lr float64) *models.Model
	Save(ctx context.Context, m *models.Model, expectedVersion int64) (int64, error)
	Current(ctx context.Context) (*models.Model, error)
}

type ModelTrainingUseCase struct {
	trainer ModelTrainer
	store   domrepo.SnapshotStore
	epochs  int
	lr      float64
	l       *applogger.Logger
}

func NewModelTrainingUseCase(trainer ModelTrainer, store domrepo.SnapshotStore, epochs int, lr float64, l *applogger.Logger) *ModelTrainingUseCase {
	return &ModelTrainingUseCase{trainer: trainer, store: store, epochs: epochs, lr: lr, l: l}
}

// TrainFromHistory fits a model on labelled snapshots in [start, end] and
// replaces the stored one. With too few examples the stored model is kept
// and models.ErrInsufficientData is returned. A concurrent save surfaces as
// models.ErrVersionConflict.
func (uc *ModelTrainingUseCase) TrainFromHistory(ctx context.Context, symbol string, start, end time.Time) (*models.Model, error) {
	symbol = strings.ToUpper(symbol)
	var expected int64
	cur, err := uc.trainer.Current(ctx)
	switch {
	case errors.Is(err, models.ErrModelNotFound):
	case err != nil:
		return nil, fmt.Errorf("load current model: %w", err)
	default:
		expected = cur.Version
	}

	snaps, err := uc.store.ListWithOutcome(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("list labelled snapshots: %w", err)
	}
	dataset, labels := Dataset(snaps)

	m := uc.trainer.Train(dataset, labels, uc.epochs, uc.lr)
	if m == nil {
		uc.l.Warn("training skipped, keeping current model",
			applogger.String("symbol", symbol),
			applogger.Int("snapshots", len(snaps)),
			applogger.Int("examples", len(dataset)),
		)
		return nil, models.ErrInsufficientData
	}
	if _, err := uc.trainer.Save(ctx, m, expected); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	return m, nil
}

// CurrentModel returns models.ErrModelNotFound when nothing was trained yet.
func (uc *ModelTrainingUseCase) CurrentModel(ctx context.Context) (*models.Model, error) {
	return uc.trainer.Current(ctx)
}

// Dataset turns labelled snapshots into training rows. UP is 1, DOWN is 0;
// snapshots without a usable feature vector are skipped.
func Dataset(snaps []models.SignalSnapshot) ([][]float64, []float64) {
	dataset := make([][]float64, 0, len(snaps))
	labels := make([]float64, 0, len(snaps))
	for i := range snaps {
		s := &snaps[i]
		if !s.HasOutcome() {
			continue
		}
		x, ok := model.Extract(&s.Features)
		if !ok {
			continue
		}
		y := 0.0
		if s.LabelDirection == models.DirectionUp {
			y = 1
		}
		dataset = append(dataset, x)
		labels = append(labels, y)
	}
	return dataset, labels
}
