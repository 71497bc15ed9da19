// Package seen provides a Bloom-filter implementation of the capture
// pipeline's SeenFilter: a compact, probabilistic memory of the origins
// already observed this session.
package seen

import (
	"math"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/agch-dev/analytics-x-ray/internal/xray/services/capture"
)

// filter wraps bits-and-blooms BloomFilter with a mutex for writes.
// Reads (Seen) are safe concurrently; Mark and Reset are serialized.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

// New constructs a SeenFilter sized for the expected number of distinct
// origins and the target false-positive rate.
func New(capacity uint64, fpRate float64) capture.SeenFilter {
	m, k := size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

func (f *filter) Seen(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

func (f *filter) Mark(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *filter) Reset() {
	f.mu.Lock()
	f.bf.ClearAll()
	f.mu.Unlock()
}

// size computes Bloom parameters from capacity (n) and FP rate (p) using
// the standard formulas:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// Results are clamped to at least 1.
func size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = 0.01
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}

var _ capture.SeenFilter = (*filter)(nil)
