package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	v   []byte
	exp time.Time
}

// TTLCache is the in-process BytesCache used when redis is disabled.
type TTLCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry), now: time.Now}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

// SetBytes stores value. A non-positive ttl never expires.
func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{v: value, exp: exp}
	c.mu.Unlock()
	return nil
}

// Purge drops expired entries.
func (c *TTLCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
			n++
		}
	}
	return n
}
