// SPDX-License-Identifier: MIT

// Package cache holds the two caches the audio helper relies on: decoded
// buffers bounded by their total size in bytes, and singleton Sound instances
// bounded by count and age.
package cache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"soundhub/internal/graph"
	applog "soundhub/internal/log"
)

// DefaultBufferBytes is the default decoded-buffer budget (256 MiB).
const DefaultBufferBytes = 256 << 20

// Buffers is an LRU of decoded buffers keyed by source locator. The least
// recently used entries are evicted once the summed size of all buffers
// exceeds the byte threshold. A single buffer larger than the threshold is
// not retained.
type Buffers struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[string, *graph.Buffer]
	usage     int
	threshold int
}

// NewBuffers creates a buffer cache bounded to threshold bytes.
func NewBuffers(threshold int) *Buffers {
	if threshold <= 0 {
		threshold = DefaultBufferBytes
	}
	b := &Buffers{threshold: threshold}
	// Entry count is not the bound; size is enforced in Set.
	b.lru, _ = simplelru.NewLRU[string, *graph.Buffer](1<<20, b.onEvict)
	return b
}

// onEvict is called by the LRU with mu held.
func (b *Buffers) onEvict(src string, buf *graph.Buffer) {
	b.usage -= buf.Bytes()
	applog.Debugf("BufferCache: evicted %s (%d bytes, usage %d/%d)", src, buf.Bytes(), b.usage, b.threshold)
}

// Get returns the buffer cached for src, marking it recently used.
func (b *Buffers) Get(src string) (*graph.Buffer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Get(src)
}

// Set caches buf for src and evicts older entries until usage fits.
func (b *Buffers) Set(src string, buf *graph.Buffer) {
	if buf == nil {
		return
	}
	size := buf.Bytes()

	b.mu.Lock()
	defer b.mu.Unlock()
	if size > b.threshold {
		applog.Debugf("BufferCache: %s (%d bytes) exceeds threshold %d, not cached", src, size, b.threshold)
		b.lru.Remove(src)
		return
	}
	b.lru.Remove(src)
	b.lru.Add(src, buf)
	b.usage += size
	for b.usage > b.threshold {
		if _, _, ok := b.lru.RemoveOldest(); !ok {
			break
		}
	}
}

// Delete removes src from the cache.
func (b *Buffers) Delete(src string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Remove(src)
}

// Usage returns the bytes held by cached buffers.
func (b *Buffers) Usage() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usage
}

// Threshold returns the byte budget.
func (b *Buffers) Threshold() int { return b.threshold }

// Len returns the number of cached buffers.
func (b *Buffers) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Len()
}
