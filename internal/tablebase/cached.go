package tablebase

import (
	"sync"

	"nnevald/pkg/types"
)

// CachedProber wraps another prober with a position-hash keyed cache so
// repeated probes of the same endgame never hit the underlying tables twice.
type CachedProber struct {
	inner   Prober
	mu      sync.RWMutex
	cache   map[uint64]ProbeResult
	maxSize int
	hits    uint64
	misses  uint64
}

// NewCachedProber creates a cached prober wrapping the given prober.
func NewCachedProber(inner Prober, cacheSize int) *CachedProber {
	return &CachedProber{
		inner:   inner,
		cache:   make(map[uint64]ProbeResult, cacheSize),
		maxSize: cacheSize,
	}
}

func (cp *CachedProber) Probe(pos *types.Position) ProbeResult {
	cp.mu.RLock()
	result, ok := cp.cache[pos.Hash]
	cp.mu.RUnlock()
	if ok {
		cp.mu.Lock()
		cp.hits++
		cp.mu.Unlock()
		return result
	}

	result = cp.inner.Probe(pos)

	cp.mu.Lock()
	cp.misses++
	if len(cp.cache) >= cp.maxSize {
		// Eviction is a full reset; no per-entry recency is tracked.
		cp.cache = make(map[uint64]ProbeResult, cp.maxSize)
	}
	cp.cache[pos.Hash] = result
	cp.mu.Unlock()
	return result
}

func (cp *CachedProber) MaxPieces() int  { return cp.inner.MaxPieces() }
func (cp *CachedProber) Available() bool { return cp.inner.Available() }

// Stats returns cache hit and miss counts.
func (cp *CachedProber) Stats() (hits, misses uint64) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.hits, cp.misses
}
