// Package cache stores rendered analytics responses for a short TTL.
package cache

import (
	"context"
	"time"
)

// BytesCache stores raw bytes with a TTL. A miss is (nil, false, nil).
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AnalyticsKey is the cache key of a live analytics response.
func AnalyticsKey(symbol, pair, interval string) string {
	return "marketsignal:analytics:" + symbol + ":" + pair + ":" + interval
}
