package capture

import "github.com/agch-dev/analytics-x-ray/internal/xray/domain"

// Gatekeeper is the allowlist surface the pipeline consults: a read before
// every recorded event, a write when the user opts in to a new origin.
// Implemented by the store controller.
type Gatekeeper interface {
	IsAllowed(name string) bool
	AutoAllowDomain(name string) domain.AutoAllowResult
}

// DecisionCache caches allow decisions by canonical origin with basic
// metrics. Must be purged whenever the rule collection changes.
type DecisionCache interface {
	Get(name string) (allowed bool, ok bool)
	Put(name string, allowed bool)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// SeenFilter remembers origins observed this session so the pipeline
// surfaces each unknown origin once. False positives are acceptable: the
// worst case is a missing "new origin" signal.
type SeenFilter interface {
	Seen(key []byte) bool
	Mark(key []byte)
	Reset()
}
