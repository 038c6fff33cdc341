// Package memory provides an in-process LRU cache used when Valkey is unavailable
// and as a first-level cache in front of it.
package memory

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Cache implements ports.BatchCache on top of a fixed-size LRU.
type Cache struct {
	lru *lru.Cache[string, entry]
	now func() time.Time
}

// New creates a cache holding at most size entries.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, now: time.Now}, nil
}

// Get returns (nil, nil) for missing or expired keys.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.lru.Remove(key)
		return nil, nil
	}
	return e.value, nil
}

// GetMany reads every key that is present and fresh.
func (c *Cache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, _ := c.Get(ctx, k); v != nil {
			out[k] = v
		}
	}
	return out, nil
}

// Set stores value; ttlSeconds <= 0 means no expiry.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	e := entry{value: value}
	if ttlSeconds > 0 {
		e.expires = c.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len is the number of cached entries, including expired ones not yet evicted.
func (c *Cache) Len() int { return c.lru.Len() }
