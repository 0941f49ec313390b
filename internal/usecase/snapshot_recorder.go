package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	pkgkafka "MarketSignal/pkg/kafka"
	applogger "MarketSignal/pkg/logger"

	"github.com/google/uuid"
)

// SnapshotRecorder consumes signal events and stores them as pending snapshots.
type SnapshotRecorder struct {
	topic   string
	store   domrepo.SnapshotStore
	metrics domrepo.Metrics
	l       *applogger.Logger
	newID   func() string
}

func NewSnapshotRecorder(topic string, store domrepo.SnapshotStore, metrics domrepo.Metrics, l *applogger.Logger) *SnapshotRecorder {
	return &SnapshotRecorder{
		topic:   topic,
		store:   store,
		metrics: metrics,
		l:       l,
		newID:   uuid.NewString,
	}
}

func (h *SnapshotRecorder) Topic() string { return h.topic }

// Handle returns an error for undecodable events so the consumer retries
// them and finally routes them to the dead letter topic.
func (h *SnapshotRecorder) Handle(ctx context.Context, b []byte) error {
	var ev models.SignalEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.recordError("recorder_unmarshal")
		return fmt.Errorf("decode signal event: %w", err)
	}
	if ev.Symbol == "" || ev.GeneratedAt.IsZero() {
		h.recordError("recorder_invalid")
		return fmt.Errorf("signal event missing symbol or generated_at")
	}

	score := ev.Score
	snap := &models.SignalSnapshot{
		ID:            h.newID(),
		Symbol:        ev.Symbol,
		Interval:      ev.Interval,
		GeneratedAt:   ev.GeneratedAt.UTC(),
		PriceAtSignal: ev.Features.LastPrice(),
		SignalRule:    ev.Signal,
		SignalScore:   &score,
		Features:      ev.Features,
	}

	start := time.Now()
	if err := h.store.Save(ctx, snap); err != nil {
		h.recordError("recorder_store")
		return fmt.Errorf("save snapshot %s: %w", ev.Symbol, err)
	}
	if h.metrics != nil {
		h.metrics.RecordLatency("snapshot_insert", time.Since(start).Seconds())
	}
	h.l.Debug("snapshot recorded",
		applogger.String("id", snap.ID),
		applogger.String("symbol", snap.Symbol),
		applogger.String("signal", string(snap.SignalRule)),
	)
	return nil
}

func (h *SnapshotRecorder) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*SnapshotRecorder)(nil)
