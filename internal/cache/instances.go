// SPDX-License-Identifier: MIT
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Instances is a best-effort cache of shared instances keyed by string.
// Entries are dropped when the cache is full or when they have not been
// stored for ttl; callers must treat a miss as normal and recreate.
type Instances[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewInstances creates a cache holding at most size entries for ttl each.
// onEvict, if non-nil, is called for every entry that leaves the cache.
func NewInstances[V any](size int, ttl time.Duration, onEvict func(key string, v V)) *Instances[V] {
	if size <= 0 {
		size = 512
	}
	var cb expirable.EvictCallback[string, V]
	if onEvict != nil {
		cb = onEvict
	}
	return &Instances[V]{lru: expirable.NewLRU[string, V](size, cb, ttl)}
}

// Get returns the instance for key.
func (c *Instances[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

// Set stores v under key, refreshing its age.
func (c *Instances[V]) Set(key string, v V) {
	c.lru.Add(key, v)
}

// Delete removes key.
func (c *Instances[V]) Delete(key string) bool {
	return c.lru.Remove(key)
}

// Len returns the number of live entries.
func (c *Instances[V]) Len() int {
	return c.lru.Len()
}
