package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "b", []byte("2"), 0))

	b, ok, err := c.GetBytes(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), b)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes(ctx, "b")
	assert.True(t, ok, "zero ttl never expires")
}

func TestTTLCachePurge(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	_ = c.SetBytes(ctx, "x", []byte("x"), time.Second)
	_ = c.SetBytes(ctx, "y", []byte("y"), time.Hour)
	now = now.Add(time.Minute)

	assert.Equal(t, 1, c.Purge())
	_, ok, _ := c.GetBytes(ctx, "y")
	assert.True(t, ok)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db)
	key := AnalyticsKey("BTC", "BTCUSDT", "1h")

	mock.ExpectGet(key).RedisNil()
	_, ok, err := c.GetBytes(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectSet(key, []byte(`{"ok":true}`), 30*time.Second).SetVal("OK")
	require.NoError(t, c.SetBytes(ctx, key, []byte(`{"ok":true}`), 30*time.Second))

	mock.ExpectGet(key).SetVal(`{"ok":true}`)
	b, ok, err := c.GetBytes(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(b))

	boom := errors.New("down")
	mock.ExpectGet(key).SetErr(boom)
	_, _, err = c.GetBytes(ctx, key)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsKey(t *testing.T) {
	assert.Equal(t, "marketsignal:analytics:ETH:ETHUSDT:4h", AnalyticsKey("ETH", "ETHUSDT", "4h"))
}
