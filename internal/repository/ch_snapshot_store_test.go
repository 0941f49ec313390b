package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"MarketSignal/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapshotCols = []string{
	"id", "symbol", "timeframe", "generated_at", "price_at_signal", "price_future",
	"signal_rule", "signal_score", "label_direction", "label_magnitude", "features_payload",
}

func fptr(v float64) *float64 { return &v }

func TestSaveSnapshotInsertsPendingRow(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCHSnapshotStore(db)
	snap := &models.SignalSnapshot{
		ID:            "id-1",
		Symbol:        "BTC",
		Interval:      "1h",
		GeneratedAt:   asOf,
		PriceAtSignal: fptr(65000),
		SignalRule:    models.SignalBuy,
		SignalScore:   fptr(2.5),
		Features:      models.FeatureSnapshot{Symbol: "BTC"},
	}

	mock.ExpectExec(`INSERT INTO signal_snapshots`).
		WithArgs("id-1", "BTC", "1h", asOf, 65000.0, nil, "BUY", 2.5, "", nil, sqlmock.AnyArg(), int64(versionPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutcomeSkipsLabelled(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCHSnapshotStore(db)
	snap := &models.SignalSnapshot{
		ID:             "id-1",
		Symbol:         "BTC",
		GeneratedAt:    asOf,
		PriceFuture:    fptr(66000),
		LabelDirection: models.DirectionUp,
		LabelMagnitude: fptr(1.5),
	}

	mock.ExpectQuery(`SELECT count\(\) FROM signal_snapshots FINAL WHERE id = \?`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"count()"}).AddRow(1))

	require.NoError(t, store.SaveOutcome(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutcomeWritesLabelledRow(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCHSnapshotStore(db)
	snap := &models.SignalSnapshot{
		ID:             "id-2",
		Symbol:         "BTC",
		GeneratedAt:    asOf,
		PriceAtSignal:  fptr(100),
		PriceFuture:    fptr(98),
		SignalRule:     models.SignalSell,
		LabelDirection: models.DirectionDown,
		LabelMagnitude: fptr(-2),
	}

	mock.ExpectQuery(`SELECT count\(\)`).WithArgs("id-2").
		WillReturnRows(sqlmock.NewRows([]string{"count()"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO signal_snapshots`).
		WithArgs("id-2", "BTC", "", asOf, 100.0, 98.0, "SELL", nil, "DOWN", -2.0, sqlmock.AnyArg(), int64(versionLabelled)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveOutcome(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutcomeRequiresOutcome(t *testing.T) {
	db, _ := newMockDB(t)
	err := NewCHSnapshotStore(db).SaveOutcome(context.Background(), &models.SignalSnapshot{ID: "x"})
	assert.Error(t, err)
}

func TestListWithOutcomeDecodesRows(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewCHSnapshotStore(db)
	payload, err := json.Marshal(models.FeatureSnapshot{Symbol: "BTC", Interval: "1h"})
	require.NoError(t, err)
	end := asOf.Add(24 * time.Hour)

	mock.ExpectQuery(`FROM signal_snapshots FINAL\s+WHERE symbol = \? AND generated_at >= \?`).
		WithArgs("BTC", asOf, end).
		WillReturnRows(sqlmock.NewRows(snapshotCols).
			AddRow("a", "BTC", "1h", asOf, 100.0, 102.0, "BUY", 1.5, "UP", 2.0, string(payload)).
			AddRow("b", "BTC", "1h", asOf.Add(time.Hour), nil, 99.0, "NEUTRAL", nil, "DOWN", -1.0, ""))

	got, err := store.ListWithOutcome(context.Background(), "BTC", asOf, end)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.SignalBuy, got[0].SignalRule)
	assert.Equal(t, "1h", got[0].Features.Interval)
	require.NotNil(t, got[0].LabelMagnitude)
	assert.Equal(t, 2.0, *got[0].LabelMagnitude)
	assert.True(t, got[0].HasOutcome())

	assert.Nil(t, got[1].PriceAtSignal)
	assert.Nil(t, got[1].SignalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPending(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`label_direction = ''`).
		WithArgs("ETH", asOf, 50).
		WillReturnRows(sqlmock.NewRows(snapshotCols).
			AddRow("p", "ETH", "1h", asOf, 3000.0, nil, "SELL", -2.0, "", nil, "{}"))

	got, err := NewCHSnapshotStore(db).ListPending(context.Background(), "ETH", asOf, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].HasOutcome())
	assert.Equal(t, 3000.0, *got[0].PriceAtSignal)
}

func TestListRejectsCorruptPayload(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM signal_snapshots`).
		WillReturnRows(sqlmock.NewRows(snapshotCols).
			AddRow("bad", "BTC", "1h", asOf, nil, 1.0, "BUY", nil, "UP", 1.0, "{not json"))

	_, err := NewCHSnapshotStore(db).ListWithOutcome(context.Background(), "BTC", asOf, asOf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}
