// Package decisioncache provides an LRU-backed implementation of the
// capture pipeline's DecisionCache.
package decisioncache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agch-dev/analytics-x-ray/internal/xray/services/capture"
)

// cache is an LRU of allow decisions keyed by canonical origin.
// It tracks basic metrics: hits, misses, and evictions.
type cache struct {
	lru       *lru.Cache[string, bool]
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledCache is a no-op DecisionCache used when size <= 0.
type disabledCache struct{}

// New creates a DecisionCache with the given capacity. If size <= 0, a
// disabled no-op cache is returned that always misses and tracks no metrics.
func New(size int) (capture.DecisionCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}

	var c cache
	// NewWithEvict observes evictions, including Purge-induced ones.
	l, err := lru.NewWithEvict(size, func(string, bool) {
		atomic.AddUint64(&c.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return &c, nil
}

func (c *cache) Get(name string) (bool, bool) {
	if allowed, ok := c.lru.Get(name); ok {
		atomic.AddUint64(&c.hits, 1)
		return allowed, true
	}
	atomic.AddUint64(&c.misses, 1)
	return false, false
}

func (c *cache) Put(name string, allowed bool) {
	c.lru.Add(name, allowed)
}

func (c *cache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *cache) Purge() { c.lru.Purge() }

func (c *cache) Stats() (hits, misses, evictions uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), atomic.LoadUint64(&c.evictions)
}

func (d *disabledCache) Get(string) (bool, bool) { return false, false }

func (d *disabledCache) Put(string, bool) {}

func (d *disabledCache) Len() int { return 0 }

func (d *disabledCache) Purge() {}

func (d *disabledCache) Stats() (uint64, uint64, uint64) { return 0, 0, 0 }

var _ capture.DecisionCache = (*cache)(nil)
var _ capture.DecisionCache = (*disabledCache)(nil)
