package models

import (
	"errors"
	"time"
)

var (
	// ErrModelNotFound is returned by a ModelStore that holds no model yet.
	ErrModelNotFound = errors.New("model not found")
	// ErrVersionConflict is returned when a replace lost an optimistic concurrency race.
	ErrVersionConflict = errors.New("model version conflict")
	// ErrInsufficientData is returned when there are too few labelled examples to train.
	ErrInsufficientData = errors.New("insufficient training data")
)

// Model is the persisted logistic regression. Weights are bias first.
type Model struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	TrainedAt    time.Time `json:"trained_at"`
	Epochs       int       `json:"epochs"`
	LearningRate float64   `json:"learning_rate"`
	Samples      int       `json:"samples"`
	Version      int64     `json:"version"`
}
