package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// Row versions for the ReplacingMergeTree. A labelled row always wins.
const (
	versionPending  uint64 = 1
	versionLabelled uint64 = 2
)

// SnapshotSchema creates the signal snapshot table.
var SnapshotSchema = []string{`
        CREATE TABLE IF NOT EXISTS signal_snapshots (
            id               String,
            symbol           LowCardinality(String),
            timeframe        LowCardinality(String),
            generated_at     DateTime64(3, 'UTC'),
            price_at_signal  Nullable(Float64),
            price_future     Nullable(Float64),
            signal_rule      LowCardinality(String),
            signal_score     Nullable(Float64),
            label_direction  LowCardinality(String),
            label_magnitude  Nullable(Float64),
            features_payload String,
            version          UInt64
        )
        ENGINE = ReplacingMergeTree(version)
        ORDER BY (symbol, generated_at, id)`,
}

const snapshotColumns = `id, symbol, timeframe, generated_at, price_at_signal, price_future,
        signal_rule, signal_score, label_direction, label_magnitude, features_payload`

type snapshotRow struct {
	ID             string          `db:"id"`
	Symbol         string          `db:"symbol"`
	Timeframe      string          `db:"timeframe"`
	GeneratedAt    time.Time       `db:"generated_at"`
	PriceAtSignal  sql.NullFloat64 `db:"price_at_signal"`
	PriceFuture    sql.NullFloat64 `db:"price_future"`
	SignalRule     string          `db:"signal_rule"`
	SignalScore    sql.NullFloat64 `db:"signal_score"`
	LabelDirection string          `db:"label_direction"`
	LabelMagnitude sql.NullFloat64 `db:"label_magnitude"`
	Features       string          `db:"features_payload"`
}

// CHSnapshotStore persists signal snapshots in ClickHouse.
type CHSnapshotStore struct {
	db *sqlx.DB
	l  *applogger.Logger
}

func NewCHSnapshotStore(db *sqlx.DB) *CHSnapshotStore {
	return &CHSnapshotStore{db: db}
}

func (s *CHSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSnapshotStore) Save(ctx context.Context, snap *models.SignalSnapshot) error {
	if err := s.insert(ctx, snap, versionPending); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SaveOutcome writes the labelled row unless one already exists.
func (s *CHSnapshotStore) SaveOutcome(ctx context.Context, snap *models.SignalSnapshot) error {
	if !snap.HasOutcome() {
		return fmt.Errorf("save outcome %s: outcome is not set", snap.ID)
	}
	var labelled uint64
	err := s.db.GetContext(ctx, &labelled,
		`SELECT count() FROM signal_snapshots FINAL WHERE id = ? AND label_direction != ''`, snap.ID)
	if err != nil {
		return fmt.Errorf("check outcome %s: %w", snap.ID, err)
	}
	if labelled > 0 {
		if s.l != nil {
			s.l.Debug("snapshot already labelled", applogger.String("id", snap.ID))
		}
		return nil
	}
	if err := s.insert(ctx, snap, versionLabelled); err != nil {
		return fmt.Errorf("save outcome %s: %w", snap.ID, err)
	}
	return nil
}

func (s *CHSnapshotStore) ListWithOutcome(ctx context.Context, symbol string, start, end time.Time) ([]models.SignalSnapshot, error) {
	q := `SELECT ` + snapshotColumns + `
        FROM signal_snapshots FINAL
        WHERE symbol = ? AND generated_at >= ? AND generated_at <= ?
          AND label_direction != '' AND price_future IS NOT NULL
        ORDER BY generated_at ASC`
	return s.list(ctx, "list_with_outcome", q, symbol, start, end)
}

func (s *CHSnapshotStore) ListPending(ctx context.Context, symbol string, maturedBefore time.Time, limit int) ([]models.SignalSnapshot, error) {
	q := `SELECT ` + snapshotColumns + `
        FROM signal_snapshots FINAL
        WHERE symbol = ? AND label_direction = '' AND generated_at <= ?
        ORDER BY generated_at ASC
        LIMIT ?`
	return s.list(ctx, "list_pending", q, symbol, maturedBefore, limit)
}

func (s *CHSnapshotStore) insert(ctx context.Context, snap *models.SignalSnapshot, version uint64) error {
	payload, err := json.Marshal(snap.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO signal_snapshots (`+snapshotColumns+`, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.Symbol,
		snap.Interval,
		snap.GeneratedAt.UTC(),
		nullable(snap.PriceAtSignal),
		nullable(snap.PriceFuture),
		string(snap.SignalRule),
		nullable(snap.SignalScore),
		snap.LabelDirection,
		nullable(snap.LabelMagnitude),
		string(payload),
		version,
	)
	return err
}

func (s *CHSnapshotStore) list(ctx context.Context, op, q string, args ...any) ([]models.SignalSnapshot, error) {
	start := time.Now()
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse snapshot query error", applogger.String("op", op), applogger.Error(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]models.SignalSnapshot, 0, len(rows))
	for _, r := range rows {
		snap := models.SignalSnapshot{
			ID:             r.ID,
			Symbol:         r.Symbol,
			Interval:       r.Timeframe,
			GeneratedAt:    r.GeneratedAt.UTC(),
			PriceAtSignal:  floatPtr(r.PriceAtSignal),
			PriceFuture:    floatPtr(r.PriceFuture),
			SignalRule:     models.SignalType(r.SignalRule),
			SignalScore:    floatPtr(r.SignalScore),
			LabelDirection: r.LabelDirection,
			LabelMagnitude: floatPtr(r.LabelMagnitude),
		}
		if r.Features != "" {
			if err := json.Unmarshal([]byte(r.Features), &snap.Features); err != nil {
				return nil, fmt.Errorf("%s: decode features of %s: %w", op, r.ID, err)
			}
		}
		out = append(out, snap)
	}
	if s.l != nil {
		s.l.Debug("clickhouse snapshot query ok",
			applogger.String("op", op),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

var _ domrepo.SnapshotStore = (*CHSnapshotStore)(nil)
