package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	domrepo "MarketSignal/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var asOf = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestLatestFundingRatesExpandsExchanges(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCHMarketData(db)

	rows := sqlmock.NewRows([]string{"exchange", "time", "close"}).
		AddRow("Binance", asOf, 0.01).
		AddRow("OKX", asOf.Add(-time.Hour), 0.02)
	mock.ExpectQuery(`FROM funding_rate_history\s+WHERE pair = \? AND timeframe = \? AND exchange IN \(\?, \?\) AND time <= \?\s+ORDER BY time DESC\s+LIMIT \?$`).
		WithArgs("BTCUSDT", "1h", "Binance", "OKX", asOf, 200).
		WillReturnRows(rows)

	got, err := repo.LatestFundingRates(context.Background(), "BTCUSDT", domrepo.Interval1h, []string{"Binance", "OKX"}, 200, asOf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Binance", got[0].Exchange)
	assert.Equal(t, 0.02, got[1].Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestFundingRatesNoExchanges(t *testing.T) {
	db, mock := newMockDB(t)
	got, err := NewCHMarketData(db).LatestFundingRates(context.Background(), "BTCUSDT", domrepo.Interval1h, nil, 10, asOf)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestLongShortRatio(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCHMarketData(db)

	mock.ExpectQuery(`FROM long_short_ratio_history`).
		WithArgs("BTC", "4h", "top", asOf, 7).
		WillReturnRows(sqlmock.NewRows([]string{"time", "long_ratio", "short_ratio"}).AddRow(asOf, 0.55, 0.45))

	got, err := repo.LatestLongShortRatio(context.Background(), "BTC", domrepo.Interval4h, domrepo.CohortTop, 7, asOf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.55, got[0].LongRatio)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestWhaleTransfersBounds(t *testing.T) {
	db, mock := newMockDB(t)
	since := asOf.Add(-7 * 24 * time.Hour)

	mock.ExpectQuery(`FROM whale_transfers`).
		WithArgs("BTC", since, asOf, 1000).
		WillReturnRows(sqlmock.NewRows([]string{"time", "symbol", "amount_usd", "from_owner", "to_owner"}).
			AddRow(asOf, "BTC", 5e6, "unknown", "Binance"))

	got, err := NewCHMarketData(db).LatestWhaleTransfers(context.Background(), "BTC", since, 1000, asOf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Binance", got[0].ToOwner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectErrorIsWrapped(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM spot_price_history`).WillReturnError(boom)

	_, err := NewCHMarketData(db).LatestPrices(context.Background(), "BTCUSDT", domrepo.Interval1h, 25, asOf)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "prices")
}
