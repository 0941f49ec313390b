// Package ratelimit throttles API clients with one token bucket per key.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

type Limiter struct {
	mu    sync.Mutex
	m     map[string]*client
	rps   rate.Limit
	burst int
	now   func() time.Time
}

func New(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		m:     make(map[string]*client),
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	c, ok := l.m[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = c
	}
	c.seen = now
	l.mu.Unlock()
	return c.lim.AllowN(now, 1)
}

// Evict forgets keys idle for longer than idle and returns how many were dropped.
func (l *Limiter) Evict(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, c := range l.m {
		if c.seen.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Middleware rejects requests over the per-IP budget with 429.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
