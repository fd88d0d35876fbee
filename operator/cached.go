package operator

import (
	"context"
	"sync"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/observe"
	"github.com/jonwraymond/paramsolve/params"
)

// KindAssemble is the observe.Meta kind of operator assembly.
const KindAssemble = "assemble"

// Cached memoizes the assembly of an Operator.
//
// Results are keyed by the fingerprint of the operator and of the parsed
// parameter value, so distinct Cached wrappers sharing a Memo also share
// results for operators in equal state. The operator is fingerprinted
// once, so its state must not change after NewCached.
type Cached struct {
	op    Operator
	memo  *cache.Memo
	keyer cache.Keyer

	idOnce sync.Once
	id     cache.Identity
	idErr  error
}

// NewCached wraps op. A nil memo selects a private in-memory cache.
func NewCached(op Operator, memo *cache.Memo) *Cached {
	if memo == nil {
		memo = cache.NewMemo(nil, cache.DefaultPolicy())
	}
	return &Cached{op: op, memo: memo, keyer: cache.NewDefaultKeyer()}
}

// Operator returns the wrapped operator.
func (c *Cached) Operator() Operator { return c.op }

// Identity returns the fingerprint of the wrapped operator.
func (c *Cached) Identity() (cache.Identity, error) {
	c.idOnce.Do(func() {
		c.id, c.idErr = cache.Fingerprint(c.op)
	})
	return c.id, c.idErr
}

// Memo returns the memo results are stored in.
func (c *Cached) Memo() *cache.Memo { return c.memo }

// Matrix parses raw against the operator's parameter type and returns the
// assembled matrix, assembling at most once per distinct value.
func (c *Cached) Matrix(ctx context.Context, raw params.Raw) (any, error) {
	mu, err := c.op.ParameterType().Parse(raw)
	if err != nil {
		return nil, err
	}
	return c.MatrixFor(ctx, mu)
}

// MatrixFor is Matrix for an already parsed value.
func (c *Cached) MatrixFor(ctx context.Context, mu params.Value) (any, error) {
	if err := c.op.ParameterType().Validate(mu); err != nil {
		return nil, err
	}
	id, err := c.Identity()
	if err != nil {
		return nil, err
	}
	key, err := c.keyer.Key(id, KindAssemble, mu)
	if err != nil {
		return nil, err
	}
	meta := observe.Meta{Kind: KindAssemble, Name: c.op.Name()}
	return c.memo.GetOrCompute(ctx, key, meta, func(ctx context.Context) (any, error) {
		return assembleChecked(ctx, c.op, mu)
	})
}
