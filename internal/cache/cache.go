// Package cache provides a small concurrency-safe TTL cache used by the
// technical analyzer to memoize multi-timeframe computations.
package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

type item[V any] struct {
	value    V
	expireAt time.Time
}

// TTL is an in-memory cache mapping string keys to values with a fixed
// per-entry lifetime. Safe for concurrent use.
type TTL[V any] struct {
	mu      sync.RWMutex
	data    map[string]item[V]
	ttl     time.Duration
	maxSize int
}

// NewTTL creates a cache holding entries for ttl. maxSize bounds the entry
// count; the oldest-expiring entry is evicted when the bound is hit.
func NewTTL[V any](ttl time.Duration, maxSize int) *TTL[V] {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &TTL[V]{
		data:    make(map[string]item[V]),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached value for key, or ErrMiss.
func (c *TTL[V]) Get(key string) (V, error) {
	c.mu.RLock()
	it, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(it.expireAt) {
		if ok {
			c.Evict(key)
		}
		var zero V
		return zero, ErrMiss
	}
	return it.value, nil
}

// Set stores value under key with the cache's TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.data) >= c.maxSize {
		c.evictSoonest()
	}
	c.data[key] = item[V]{value: value, expireAt: time.Now().Add(c.ttl)}
}

// Evict removes key if present.
func (c *TTL[V]) Evict(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Len returns the current entry count, expired entries included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Purge drops every expired entry.
func (c *TTL[V]) Purge() {
	now := time.Now()
	c.mu.Lock()
	for k, it := range c.data {
		if now.After(it.expireAt) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
}

func (c *TTL[V]) evictSoonest() {
	var victim string
	var soonest time.Time
	first := true
	for k, it := range c.data {
		if first || it.expireAt.Before(soonest) {
			victim, soonest = k, it.expireAt
			first = false
		}
	}
	if victim != "" {
		delete(c.data, victim)
	}
}
