package discretization

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/observe"
	"github.com/jonwraymond/paramsolve/operator"
	"github.com/jonwraymond/paramsolve/params"
)

// Names of the operators of a StationaryLinear, as used by Operators and
// for parameter projection.
const (
	OperatorName = "operator"
	RHSName      = "rhs"
)

// KindSolve is the observe.Meta kind of a solve.
const KindSolve = "solve"

// ErrNoVisualizer is returned by Visualize when no visualizer is set.
var ErrNoVisualizer = errors.New("discretization: no visualizer configured")

// Visualizer renders a solution. It is only ever called through Visualize.
type Visualizer func(u *mat.VecDense) error

// StationaryLinear is the discretization A(mu) u = f(mu).
//
// Contract:
//   - Concurrency: Solve is safe for concurrent use; concurrent solves of
//     the same mu run the solver once.
//   - Errors: parameter errors are returned before anything is assembled.
//     Assembly and solver errors are wrapped and never cached.
//   - Ownership: returned solutions may be shared and must not be modified.
//   - State: op and rhs are fingerprinted by New and must not change after.
type StationaryLinear struct {
	name       string
	op         operator.Operator
	rhs        operator.Operator
	opID       cache.Identity
	rhsID      cache.Identity
	scheme     *params.Scheme
	visualizer Visualizer
	hook       StateHook
	logger     observe.Logger
	logSolves  bool
	keyer      cache.Keyer

	backend cache.Cache
	policy  cache.Policy
	mw      *observe.Middleware
	memo    *cache.Memo
	cachedA *operator.Cached
	cachedF *operator.Cached

	mu       sync.RWMutex
	solver   linalg.Solver // nil selects dispatch
	dispatch linalg.Dispatch
}

// Option configures a StationaryLinear.
type Option func(*StationaryLinear) error

// WithName sets the name used in logs. Default: "stationary".
func WithName(name string) Option {
	return func(d *StationaryLinear) error {
		d.name = name
		return nil
	}
}

// WithSolver replaces storage-class dispatch with s for every solve.
func WithSolver(s linalg.Solver) Option {
	return func(d *StationaryLinear) error {
		d.solver = s
		return nil
	}
}

// WithSolverConfig sets the iterative solver settings used for sparse
// systems by the default dispatch.
func WithSolverConfig(tol float64, maxIter int) Option {
	return func(d *StationaryLinear) error {
		if tol < 0 || maxIter < 0 {
			return fmt.Errorf("discretization: invalid solver config tol=%g max_iter=%d", tol, maxIter)
		}
		d.dispatch = linalg.NewDispatch(tol, maxIter)
		return nil
	}
}

// WithVisualizer sets the visualizer called by Visualize.
func WithVisualizer(v Visualizer) Option {
	return func(d *StationaryLinear) error {
		d.visualizer = v
		return nil
	}
}

// WithCache stores assemblies and solutions in c under policy p. Default:
// a private MemoryCache with cache.DefaultPolicy.
func WithCache(c cache.Cache, p cache.Policy) Option {
	return func(d *StationaryLinear) error {
		if c == nil {
			return cache.ErrNilCache
		}
		if err := p.Validate(); err != nil {
			return err
		}
		d.backend = c
		d.policy = p
		return nil
	}
}

// WithLogger sets the logger. Default: observe.NopLogger.
func WithLogger(l observe.Logger) Option {
	return func(d *StationaryLinear) error {
		if l != nil {
			d.logger = l
		}
		return nil
	}
}

// WithObserver traces and measures every assembly and solve, and logs
// through the observer's logger.
func WithObserver(obs observe.Observer) Option {
	return func(d *StationaryLinear) error {
		mw, err := observe.MiddlewareFromObserver(obs)
		if err != nil {
			return fmt.Errorf("discretization: observer: %w", err)
		}
		d.mw = mw
		d.logger = obs.Logger()
		return nil
	}
}

// WithStateHook observes the state machine of every uncached solve.
func WithStateHook(h StateHook) Option {
	return func(d *StationaryLinear) error {
		d.hook = h
		return nil
	}
}

// WithDisableLogging suppresses the per-solve log line.
func WithDisableLogging() Option {
	return func(d *StationaryLinear) error {
		d.logSolves = false
		return nil
	}
}

// New builds the discretization of op u = rhs. op must be square and rhs a
// functional on the same space.
func New(op, rhs operator.Operator, opts ...Option) (*StationaryLinear, error) {
	for _, o := range []operator.Operator{op, rhs} {
		if err := operator.Check(o); err != nil {
			return nil, err
		}
	}
	if op.DimSource() != op.DimRange() || rhs.DimSource() != op.DimSource() || rhs.DimRange() != 1 {
		return nil, fmt.Errorf("%w: operator %q is %dx%d and rhs %q is %dx%d",
			linalg.ErrDimensionMismatch, op.Name(), op.DimRange(), op.DimSource(),
			rhs.Name(), rhs.DimRange(), rhs.DimSource())
	}

	opID, err := cache.Fingerprint(op)
	if err != nil {
		return nil, err
	}
	rhsID, err := cache.Fingerprint(rhs)
	if err != nil {
		return nil, err
	}

	scheme, err := params.BuildScheme(nil,
		params.Inherit{Name: OperatorName, Entity: op},
		params.Inherit{Name: RHSName, Entity: rhs},
	)
	if err != nil {
		return nil, err
	}

	d := &StationaryLinear{
		name:      "stationary",
		op:        op,
		rhs:       rhs,
		opID:      opID,
		rhsID:     rhsID,
		scheme:    scheme,
		logger:    observe.NopLogger(),
		logSolves: true,
		keyer:     cache.NewDefaultKeyer(),
		policy:    cache.DefaultPolicy(),
		dispatch:  linalg.NewDispatch(linalg.DefaultBiCGTol, 0),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.backend == nil {
		d.backend = cache.NewMemoryCache(d.policy)
	}
	d.bindCache(d.backend)
	return d, nil
}

func (d *StationaryLinear) bindCache(c cache.Cache) {
	opts := []cache.MemoOption{cache.WithLogger(d.logger)}
	if d.mw != nil {
		opts = append(opts, cache.WithMiddleware(d.mw))
	}
	d.backend = c
	d.memo = cache.NewMemo(c, d.policy, opts...)
	d.cachedA = operator.NewCached(d.op, d.memo)
	d.cachedF = operator.NewCached(d.rhs, d.memo)
}

// Name returns the name used in logs.
func (d *StationaryLinear) Name() string { return d.name }

// Operator returns the system operator.
func (d *StationaryLinear) Operator() operator.Operator { return d.op }

// RHS returns the right-hand side functional.
func (d *StationaryLinear) RHS() operator.Operator { return d.rhs }

// Operators returns the operators by name.
func (d *StationaryLinear) Operators() map[string]operator.Operator {
	return map[string]operator.Operator{OperatorName: d.op, RHSName: d.rhs}
}

// SolutionDim is the length of a solution vector.
func (d *StationaryLinear) SolutionDim() int { return d.op.DimSource() }

// ParameterType is the merged type of the operator and the rhs.
func (d *StationaryLinear) ParameterType() *params.Type { return d.scheme.ParameterType() }

// Memo returns the memo holding assemblies and solutions.
func (d *StationaryLinear) Memo() *cache.Memo { return d.memo }

// Solver returns the solver selected by WithSolver or SetSolver, or the
// storage-class dispatch.
func (d *StationaryLinear) Solver() linalg.Solver {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.solver != nil {
		return d.solver
	}
	return d.dispatch
}

// SetSolver replaces the solver. Solutions computed with the previous solver
// are not returned for later solves since the solver is part of the
// fingerprint. A nil s restores the default dispatch.
func (d *StationaryLinear) SetSolver(s linalg.Solver) {
	d.mu.Lock()
	d.solver = s
	d.mu.Unlock()
}

// CacheState identifies d by its operators and solver. Name, logging and
// the cache itself do not take part.
func (d *StationaryLinear) CacheState() (string, []any) {
	return snapshot{op: d.opID, rhs: d.rhsID, solver: d.Solver()}.CacheState()
}

// snapshot pins the solver for the duration of one solve so the key and
// the computation agree.
type snapshot struct {
	op, rhs cache.Identity
	solver  linalg.Solver
}

func (s snapshot) CacheState() (string, []any) {
	return "discretization.StationaryLinear", []any{s.op, s.rhs, s.solver}
}

// Solve returns the solution for raw, solving at most once per distinct
// parsed value.
func (d *StationaryLinear) Solve(ctx context.Context, raw params.Raw) (*mat.VecDense, error) {
	mu, err := d.scheme.Parse(raw)
	if err != nil {
		return nil, err
	}
	snap := snapshot{op: d.opID, rhs: d.rhsID, solver: d.Solver()}
	key, err := d.keyer.Key(snap, KindSolve, mu)
	if err != nil {
		return nil, err
	}

	meta := observe.Meta{Kind: KindSolve, Name: d.name}
	v, err := d.memo.GetOrCompute(ctx, key, meta, func(ctx context.Context) (any, error) {
		return d.solve(ctx, mu, snap.solver, true)
	})
	if err != nil {
		return nil, err
	}
	u, ok := v.(*mat.VecDense)
	if !ok {
		return nil, fmt.Errorf("discretization: cached solution for %q has type %T", d.name, v)
	}
	return u, nil
}

// SolveUncached runs the solve state machine without consulting any cache.
func (d *StationaryLinear) SolveUncached(ctx context.Context, raw params.Raw) (*mat.VecDense, error) {
	mu, err := d.scheme.Parse(raw)
	if err != nil {
		return nil, err
	}
	return d.solve(ctx, mu, d.Solver(), false)
}

func (d *StationaryLinear) solve(ctx context.Context, mu params.Value, solver linalg.Solver, cached bool) (*mat.VecDense, error) {
	r := &run{ctx: ctx, name: d.name, state: StateUnsolved, hook: d.hook}
	r.to(StateAssembling)

	a, b, err := d.assemble(ctx, mu, cached)
	if err != nil {
		r.to(StateFailed)
		return nil, err
	}

	r.to(StateSolving)
	n := d.SolutionDim()
	if n == 0 {
		r.to(StateSolved)
		return &mat.VecDense{}, nil
	}

	storage := linalg.StorageOf(a)
	if d.logSolves {
		d.logger.Info(ctx, fmt.Sprintf("solving %s (%s) for %s", d.name, storage, mu),
			observe.F("dim", n))
	}

	u, err := solver.Solve(ctx, a.(mat.Matrix), b)
	if err != nil {
		r.to(StateFailed)
		return nil, fmt.Errorf("discretization: solve %q: %w", d.name, err)
	}
	r.to(StateSolved)
	return u, nil
}

func (d *StationaryLinear) assemble(ctx context.Context, mu params.Value, cached bool) (any, *mat.VecDense, error) {
	muA, err := d.scheme.Map(mu, OperatorName)
	if err != nil {
		return nil, nil, err
	}
	muF, err := d.scheme.Map(mu, RHSName)
	if err != nil {
		return nil, nil, err
	}

	var a, f any
	if cached {
		if a, err = d.cachedA.MatrixFor(ctx, muA); err != nil {
			return nil, nil, err
		}
		if f, err = d.cachedF.MatrixFor(ctx, muF); err != nil {
			return nil, nil, err
		}
	} else {
		if a, err = operator.AssembleRaw(ctx, d.op, muA.AsRaw()); err != nil {
			return nil, nil, err
		}
		if f, err = operator.AssembleRaw(ctx, d.rhs, muF.AsRaw()); err != nil {
			return nil, nil, err
		}
	}

	if _, ok := a.(mat.Matrix); !ok {
		return nil, nil, fmt.Errorf("%w: system operator %q assembled %T", operator.ErrNonConformant, d.op.Name(), a)
	}
	b, err := operator.AsVector(f)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// Copy returns an independent discretization with the same operators,
// solver and options and a fresh in-memory cache.
func (d *StationaryLinear) Copy() *StationaryLinear {
	d.mu.RLock()
	solver := d.solver
	d.mu.RUnlock()

	c := &StationaryLinear{
		name:       d.name,
		op:         d.op,
		rhs:        d.rhs,
		opID:       d.opID,
		rhsID:      d.rhsID,
		scheme:     d.scheme,
		visualizer: d.visualizer,
		hook:       d.hook,
		logger:     d.logger,
		logSolves:  d.logSolves,
		keyer:      d.keyer,
		policy:     d.policy,
		mw:         d.mw,
		solver:     solver,
		dispatch:   d.dispatch,
	}
	c.bindCache(cache.NewMemoryCache(d.policy))
	return c
}

// Visualize passes u to the visualizer.
func (d *StationaryLinear) Visualize(u *mat.VecDense) error {
	if d.visualizer == nil {
		return ErrNoVisualizer
	}
	return d.visualizer(u)
}

var (
	_ params.Parametric = (*StationaryLinear)(nil)
	_ cache.Stateful    = (*StationaryLinear)(nil)
)
