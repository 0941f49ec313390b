package repository

import (
	"context"
	"time"

	"MarketSignal/internal/domain/models"
)

// Cohort selects the trader population of a long/short ratio series.
type Cohort string

const (
	CohortGlobal Cohort = "global"
	CohortTop    Cohort = "top"
)

// MarketDataRepository supplies already-normalized time-series rows.
// Every method returns rows ordered most recent first, bounded by asOf.
type MarketDataRepository interface {
	LatestFundingRates(ctx context.Context, pair string, interval Interval, exchanges []string, limit int, asOf time.Time) ([]models.FundingRateRow, error)
	LatestOpenInterest(ctx context.Context, symbol string, interval Interval, unit string, limit int, asOf time.Time) ([]models.OpenInterestRow, error)
	LatestWhaleTransfers(ctx context.Context, symbol string, since time.Time, limit int, until time.Time) ([]models.WhaleTransferRow, error)
	LatestEtfFlows(ctx context.Context, limit int, asOf time.Time) ([]models.EtfFlowRow, error)
	FearGreedHistory(ctx context.Context, limit int, asOf time.Time) ([]models.FearGreedRow, error)
	LatestSpotOrderbook(ctx context.Context, pair string, interval Interval, limit int, asOf time.Time) ([]models.OrderbookRow, error)
	LatestTakerVolume(ctx context.Context, pair string, interval Interval, limit int, asOf time.Time) ([]models.TakerVolumeRow, error)
	LatestPrices(ctx context.Context, pair string, interval Interval, limit int, asOf time.Time) ([]models.PriceRow, error)
	LatestLiquidations(ctx context.Context, symbol string, interval Interval, limit int, asOf time.Time) ([]models.LiquidationRow, error)
	LatestLongShortRatio(ctx context.Context, symbol string, interval Interval, cohort Cohort, limit int, asOf time.Time) ([]models.LongShortRow, error)
}

// SnapshotStore persists SignalSnapshots and their realized outcomes.
type SnapshotStore interface {
	Save(ctx context.Context, s *models.SignalSnapshot) error
	// ListWithOutcome returns labelled snapshots in [start, end], ascending by generated_at.
	ListWithOutcome(ctx context.Context, symbol string, start, end time.Time) ([]models.SignalSnapshot, error)
	// ListPending returns unlabelled snapshots generated at or before maturedBefore.
	ListPending(ctx context.Context, symbol string, maturedBefore time.Time, limit int) ([]models.SignalSnapshot, error)
	// SaveOutcome records the realized outcome of a snapshot that has none yet.
	SaveOutcome(ctx context.Context, s *models.SignalSnapshot) error
}

// ModelStore holds at most one live model.
type ModelStore interface {
	// Load returns models.ErrModelNotFound when nothing was saved yet.
	Load(ctx context.Context) (*models.Model, error)
	// Replace swaps the model if the stored version equals expectedVersion
	// (0 when empty) and returns the new version. It returns
	// models.ErrVersionConflict otherwise.
	Replace(ctx context.Context, m *models.Model, expectedVersion int64) (int64, error)
}

type SignalPublisher interface {
	Publish(ctx context.Context, ev *models.SignalEvent) error
	Close() error
}

type Metrics interface {
	RecordSectionMissing(section string)
	RecordSignal(symbol string, signal models.SignalType)
	RecordAIPrediction(source string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
