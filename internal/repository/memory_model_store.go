package repository

import (
	"context"
	"sync"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
)

// MemoryModelStore keeps the live model in process memory.
type MemoryModelStore struct {
	mu sync.RWMutex
	m  *models.Model
}

func NewMemoryModelStore() *MemoryModelStore { return &MemoryModelStore{} }

func (s *MemoryModelStore) Load(_ context.Context) (*models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.m == nil {
		return nil, models.ErrModelNotFound
	}
	cp := *s.m
	cp.Weights = append([]float64(nil), s.m.Weights...)
	cp.FeatureNames = append([]string(nil), s.m.FeatureNames...)
	return &cp, nil
}

func (s *MemoryModelStore) Replace(_ context.Context, m *models.Model, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if s.m != nil {
		current = s.m.Version
	}
	if current != expectedVersion {
		return 0, models.ErrVersionConflict
	}
	cp := *m
	cp.Version = current + 1
	cp.Weights = append([]float64(nil), m.Weights...)
	cp.FeatureNames = append([]string(nil), m.FeatureNames...)
	s.m = &cp
	return cp.Version, nil
}

var _ domrepo.ModelStore = (*MemoryModelStore)(nil)
