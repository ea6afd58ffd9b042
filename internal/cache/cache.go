// Package cache holds the block-identity cache: a bounded hash -> (id, height)
// map shared by every read path in the persistence layer. It is additive only
// except for an explicit Clear, since block rows are never deleted once
// created.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Capacity is the maximum number of entries the cache retains before it
// starts evicting by least-recently-used.
const Capacity = 400_000

// BlockBase is the cached projection of a block row: just enough to resolve
// hash -> id and hash -> height without a database round trip.
type BlockBase struct {
	ID     uint64
	Height uint64
}

// BlockCache is a bounded, mutex-serialized hash -> BlockBase map. A single
// mutex is acceptable because database transactions dominate latency; cache
// operations are coarse by comparison.
type BlockCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, BlockBase]
}

// New constructs a BlockCache at the fixed capacity.
func New() *BlockCache {
	c, err := lru.New[string, BlockBase](Capacity)
	if err != nil {
		// Only returns an error for a non-positive size, which Capacity
		// never is.
		panic(err)
	}
	return &BlockCache{lru: c}
}

// Peek returns the cached entry for hash without updating its recency. Batch
// processing reads the cache far more often than it writes it, and peeking
// instead of getting keeps that traffic from perturbing eviction order.
func (c *BlockCache) Peek(hash string) (BlockBase, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(hash)
}

// Put inserts or refreshes the entry for hash.
func (c *BlockCache) Put(hash string, base BlockBase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(hash, base)
}

// Clear discards every entry.
func (c *BlockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len reports the number of entries currently cached. Used by tests and
// diagnostics.
func (c *BlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
