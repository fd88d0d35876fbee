package health

import (
	"context"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/resilience"
)

var sentinelKey = cache.Key{
	Identity: cache.MustFingerprint("health.sentinel"),
	Call:     cache.MustFingerprint("health.sentinel.entry"),
}

type breakerStater interface {
	BreakerState() resilience.State
}

// CacheChecker round-trips a sentinel entry through a cache backend.
//
// The result is unhealthy when the sentinel cannot be stored or read back and
// degraded while the backend's circuit breaker is open, since solves then
// recompute instead of failing. A cache.NoCache backend is healthy.
type CacheChecker struct {
	name  string
	cache cache.Cache
}

// NewCacheChecker checks c under name.
func NewCacheChecker(name string, c cache.Cache) *CacheChecker {
	return &CacheChecker{name: name, cache: c}
}

func (c *CacheChecker) Name() string { return c.name }

// Check stores, reads and deletes the sentinel entry.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}
	if c.cache == nil {
		return Unhealthy("no cache configured", cache.ErrNilCache)
	}
	switch c.cache.(type) {
	case cache.NoCache, *cache.NoCache:
		return Healthy("caching disabled")
	}
	if b, ok := c.cache.(breakerStater); ok {
		if state := b.BreakerState(); state == resilience.StateOpen {
			return Degraded("cache breaker open, results are recomputed").
				WithDetails(map[string]any{"breaker": state.String()})
		}
	}

	want := []float64{1, 2, 3}
	if err := c.cache.Set(ctx, sentinelKey, cache.NewEntry(linalg.NewVector(want))); err != nil {
		return Unhealthy("sentinel write failed", fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}
	defer func() { _ = c.cache.Delete(context.WithoutCancel(ctx), sentinelKey) }()

	entry, ok := c.cache.Get(ctx, sentinelKey)
	if !ok {
		return Unhealthy("sentinel read failed", ErrCheckFailed)
	}
	if entry.Storage != linalg.StorageVector {
		return Unhealthy("sentinel storage changed", ErrRoundTripMismatch)
	}
	if v, ok := entry.Value.(*mat.VecDense); !ok || !slices.Equal(linalg.VectorData(v), want) {
		return Unhealthy("sentinel value changed", ErrRoundTripMismatch)
	}
	return Healthy("cache round trip ok")
}
