package cache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/observe"
)

// ComputeFunc produces the result for a cache miss.
type ComputeFunc func(ctx context.Context) (any, error)

// Stats counts Memo activity.
type Stats struct {
	Hits         uint64
	Misses       uint64
	Computations uint64
	StoreErrors  uint64
}

// Memo memoizes computations in a Cache backend.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent misses on one key
//     share a single computation.
//   - Errors: computation errors are returned unchanged and never stored.
//     Store failures are logged and do not fail the call.
//   - Ownership: returned values may be shared with other callers and must
//     not be modified.
type Memo struct {
	cache   Cache
	policy  Policy
	group   singleflight.Group
	logger  observe.Logger
	metrics observe.Metrics
	mw      *observe.Middleware

	hits         atomic.Uint64
	misses       atomic.Uint64
	computations atomic.Uint64
	storeErrors  atomic.Uint64
}

// MemoOption configures a Memo.
type MemoOption func(*Memo)

// WithLogger sets the logger used for store failures.
func WithLogger(l observe.Logger) MemoOption {
	return func(m *Memo) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the sink for hit and miss counters.
func WithMetrics(metrics observe.Metrics) MemoOption {
	return func(m *Memo) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithMiddleware wraps every computation with mw. Its metrics sink also
// receives lookups unless WithMetrics is given.
func WithMiddleware(mw *observe.Middleware) MemoOption {
	return func(m *Memo) {
		m.mw = mw
	}
}

// NewMemo creates a Memo over c. A nil cache is replaced by a MemoryCache
// built from policy.
func NewMemo(c Cache, policy Policy, opts ...MemoOption) *Memo {
	if c == nil {
		c = NewMemoryCache(policy)
	}
	m := &Memo{
		cache:  c,
		policy: policy,
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.mw != nil {
		m.mw = m.mw.WithClassifier(storageClass)
	}
	if m.metrics == nil {
		if m.mw != nil {
			m.metrics = m.mw.Metrics()
		} else {
			m.metrics = observe.NopMetrics()
		}
	}
	return m
}

// Cache returns the backend of m.
func (m *Memo) Cache() Cache { return m.cache }

// Policy returns the policy of m.
func (m *Memo) Policy() Policy { return m.policy }

// GetOrCompute returns the stored result for key, or runs compute, stores
// its result and returns it.
//
// With caching disabled by the policy compute runs on every call.
func (m *Memo) GetOrCompute(ctx context.Context, key Key, meta observe.Meta, compute ComputeFunc) (any, error) {
	if !m.policy.ShouldCache() {
		return m.run(ctx, meta, compute)
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	if e, ok := m.cache.Get(ctx, key); ok {
		m.hit(ctx, meta, e)
		return e.Value, nil
	}

	v, err, _ := m.group.Do(key.String(), func() (any, error) {
		// A flight that finished just before this one started has stored
		// its result already.
		if e, ok := m.cache.Get(ctx, key); ok {
			m.hit(ctx, meta, e)
			return e.Value, nil
		}
		m.misses.Add(1)
		m.metrics.RecordLookup(ctx, meta, false)

		result, err := m.run(ctx, meta, compute)
		if err != nil {
			return nil, err
		}

		if err := m.cache.Set(ctx, key, NewEntry(result)); err != nil {
			m.storeErrors.Add(1)
			m.logger.WithComputation(meta).Warn(ctx, "cache store failed",
				observe.F("key", key.String()),
				observe.F("error", err))
		}
		return result, nil
	})
	return v, err
}

// Invalidate removes the stored result for key.
func (m *Memo) Invalidate(ctx context.Context, key Key) error {
	return m.cache.Delete(ctx, key)
}

// Stats returns a snapshot of the counters of m.
func (m *Memo) Stats() Stats {
	return Stats{
		Hits:         m.hits.Load(),
		Misses:       m.misses.Load(),
		Computations: m.computations.Load(),
		StoreErrors:  m.storeErrors.Load(),
	}
}

func (m *Memo) hit(ctx context.Context, meta observe.Meta, e Entry) {
	m.hits.Add(1)
	if meta.Storage == "" && e.Storage != linalg.StorageUnknown {
		meta.Storage = e.Storage.String()
	}
	m.metrics.RecordLookup(ctx, meta, true)
}

func storageClass(result any) string {
	if s := linalg.StorageOf(result); s != linalg.StorageUnknown {
		return s.String()
	}
	return ""
}

func (m *Memo) run(ctx context.Context, meta observe.Meta, compute ComputeFunc) (any, error) {
	m.computations.Add(1)
	if m.mw == nil {
		return compute(ctx)
	}
	return m.mw.Wrap(func(ctx context.Context, _ observe.Meta) (any, error) {
		return compute(ctx)
	})(ctx, meta)
}
