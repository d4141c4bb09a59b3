// Package cache is a small TTL cache whose loads are collapsed with singleflight.
// Failed loads are never cached.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Options bounds the cache. MaxEntries <= 0 means unbounded.
type Options struct {
	TTL        time.Duration
	MaxEntries int
}

type MetricsHooks struct {
	OnHit   func(key string)
	OnMiss  func(key string)
	OnError func(key string)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
	lastUsed  time.Time
}

type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]*entry[V]
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
	now     func() time.Time
}

func New[V any](opts Options, hooks MetricsHooks) *Cache[V] {
	return &Cache[V]{
		items:   make(map[string]*entry[V]),
		opts:    opts,
		metrics: hooks,
		now:     time.Now,
	}
}

// Loader returns ok=false when key has no value; that result is not cached.
type Loader[V any] func(ctx context.Context, key string) (V, bool, error)

type loadResult[V any] struct {
	val V
	ok  bool
}

// Get returns a cached value or calls loader once per key across concurrent callers.
func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, bool, error) {
	now := c.now()
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		if now.Before(e.expiresAt) {
			e.lastUsed = now
			val := e.value
			c.mu.Unlock()
			if c.metrics.OnHit != nil {
				c.metrics.OnHit(key)
			}
			return val, true, nil
		}
		delete(c.items, key)
	}
	c.mu.Unlock()

	if c.metrics.OnMiss != nil {
		c.metrics.OnMiss(key)
	}
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		val, ok, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			c.set(key, val)
		}
		return loadResult[V]{val: val, ok: ok}, nil
	})
	if err != nil {
		if c.metrics.OnError != nil {
			c.metrics.OnError(key)
		}
		var zero V
		return zero, false, err
	}
	res := result.(loadResult[V])
	return res.val, res.ok, nil
}

func (c *Cache[V]) set(key string, val V) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &entry[V]{value: val, expiresAt: now.Add(c.opts.TTL), lastUsed: now}
	c.evictIfNeeded()
}

// evictIfNeeded drops the least recently used entries. Caller holds mu.
func (c *Cache[V]) evictIfNeeded() {
	for c.opts.MaxEntries > 0 && len(c.items) > c.opts.MaxEntries {
		var victim string
		var oldest time.Time
		for k, e := range c.items {
			if victim == "" || e.lastUsed.Before(oldest) {
				victim, oldest = k, e.lastUsed
			}
		}
		delete(c.items, victim)
	}
}
