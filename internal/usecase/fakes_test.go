package usecase

import (
	"context"
	"sync"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	"MarketSignal/internal/services/features"
)

func f(v float64) *float64 { return &v }

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type fakeBuilder struct {
	mu    sync.Mutex
	calls []features.Request
	err   error
}

func (b *fakeBuilder) Build(_ context.Context, req features.Request) (*models.FeatureSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, req)
	if b.err != nil {
		return nil, b.err
	}
	at := t0
	if req.At != nil {
		at = *req.At
	}
	return &models.FeatureSnapshot{
		Symbol:      req.Symbol,
		Pair:        req.Pair,
		Interval:    string(req.Interval),
		GeneratedAt: at,
		Momentum:    models.MomentumFeatures{LastPrice: f(64000)},
		Health:      &models.Health{Completeness: 1, MissingSections: []string{}},
	}, nil
}

type fixedScorer struct{ result models.SignalResult }

func (s fixedScorer) Score(*models.FeatureSnapshot) models.SignalResult { return s.result }

type fakeOverlay struct {
	pred *models.AiPrediction
	err  error
	seen *float64
}

func (o *fakeOverlay) Predict(_ context.Context, _ *models.FeatureSnapshot, score *float64) (*models.AiPrediction, error) {
	o.seen = score
	return o.pred, o.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.SignalEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *models.SignalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type recordingHub struct{ events []*models.SignalEvent }

func (h *recordingHub) Broadcast(ev *models.SignalEvent) { h.events = append(h.events, ev) }

type countingMetrics struct {
	mu      sync.Mutex
	signals map[string]models.SignalType
	errors  []string
}

func (m *countingMetrics) RecordSectionMissing(string) {}
func (m *countingMetrics) RecordSignal(symbol string, signal models.SignalType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signals == nil {
		m.signals = map[string]models.SignalType{}
	}
	m.signals[symbol] = signal
}
func (m *countingMetrics) RecordAIPrediction(string) {}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}
func (m *countingMetrics) RecordLatency(string, float64) {}

// memStore is an in-memory SnapshotStore honoring the write-once outcome rule.
type memStore struct {
	mu      sync.Mutex
	rows    []models.SignalSnapshot
	saveErr error
	listErr error
}

func (s *memStore) Save(_ context.Context, snap *models.SignalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rows = append(s.rows, *snap)
	return nil
}

func (s *memStore) ListWithOutcome(_ context.Context, symbol string, start, end time.Time) ([]models.SignalSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.SignalSnapshot
	for _, r := range s.rows {
		if r.Symbol == symbol && r.HasOutcome() && !r.GeneratedAt.Before(start) && !r.GeneratedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) ListPending(_ context.Context, symbol string, maturedBefore time.Time, limit int) ([]models.SignalSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.SignalSnapshot
	for _, r := range s.rows {
		if r.Symbol == symbol && !r.HasOutcome() && !r.GeneratedAt.After(maturedBefore) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) SaveOutcome(_ context.Context, snap *models.SignalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == snap.ID && !s.rows[i].HasOutcome() {
			s.rows[i] = *snap
		}
	}
	return nil
}

// byID returns a copy of the stored row, or an empty snapshot.
func (s *memStore) byID(id string) *models.SignalSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			return &r
		}
	}
	return &models.SignalSnapshot{}
}

// priceRepo serves LatestPrices from a fixed ascending series.
type priceRepo struct {
	domrepo.MarketDataRepository
	rows  []models.PriceRow
	err   error
	pairs []string
}

func (r *priceRepo) LatestPrices(_ context.Context, pair string, _ domrepo.Interval, limit int, asOf time.Time) ([]models.PriceRow, error) {
	r.pairs = append(r.pairs, pair)
	if r.err != nil {
		return nil, r.err
	}
	var out []models.PriceRow
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if !r.rows[i].Time.After(asOf) {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}
