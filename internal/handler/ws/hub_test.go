package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketSignal/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)

	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signals"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sample(symbol string, sig models.SignalType) *models.SignalEvent {
	return &models.SignalEvent{
		Symbol:      symbol,
		Pair:        symbol + "USDT",
		Interval:    "1h",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Signal:      sig,
		Score:       2,
		Confidence:  0.4,
	}
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(sample("BTC", models.SignalBuy))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "signal", msg.Type)
	assert.Equal(t, "BTC", msg.Symbol)
	assert.Equal(t, models.SignalBuy, msg.Signal)
	assert.Equal(t, 0.4, msg.Confidence)
}

func TestHub_SymbolFilter(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?symbol=eth")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(sample("BTC", models.SignalBuy))
	hub.Broadcast(sample("ETH", models.SignalSell))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "ETH", msg.Symbol)
	assert.Equal(t, models.SignalSell, msg.Signal)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(nil)
}
