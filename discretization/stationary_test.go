package discretization

import (
	"bytes"
	"context"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/observe"
	"github.com/jonwraymond/paramsolve/operator"
	"github.com/jonwraymond/paramsolve/params"
)

var ctx = context.Background()

func countingSolver(calls *atomic.Int64) linalg.Solver {
	return linalg.SolverFunc{
		ID: "counting-direct",
		Fn: func(ctx context.Context, a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
			calls.Add(1)
			return linalg.Direct{}.Solve(ctx, a, b)
		},
	}
}

func diagSystem(t *testing.T, opts ...Option) *StationaryLinear {
	t.Helper()
	op, err := operator.NewConstant("diag", mat.NewDense(3, 3, []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}))
	require.NoError(t, err)
	rhs, err := operator.NewFunctional("ones", []float64{1, 1, 1})
	require.NoError(t, err)
	d, err := New(op, rhs, opts...)
	require.NoError(t, err)
	return d
}

func heatSystem(t *testing.T, elements int, opts ...Option) *StationaryLinear {
	t.Helper()
	op, err := operator.NewDiffusion1D("heat", elements)
	require.NoError(t, err)
	rhs, err := operator.NewLoad1D("load", elements, 1)
	require.NoError(t, err)
	d, err := New(op, rhs, append([]Option{WithName("heat")}, opts...)...)
	require.NoError(t, err)
	return d
}

func TestSolve_DiagonalScenario(t *testing.T) {
	d := diagSystem(t)

	u, err := d.Solve(ctx, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0.5, 1.0 / 3}, linalg.VectorData(u), 1e-15)

	again, err := d.Solve(ctx, params.Raw{})
	require.NoError(t, err)
	assert.Same(t, u, again)
	assert.Equal(t, uint64(1), d.Memo().Stats().Hits)
}

func TestSolve_SolverInvokedOnce(t *testing.T) {
	var calls atomic.Int64
	d := diagSystem(t, WithSolver(countingSolver(&calls)))

	for i := 0; i < 3; i++ {
		_, err := d.Solve(ctx, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestSolve_ConcurrentCallersSolveOnce(t *testing.T) {
	var calls atomic.Int64
	d := diagSystem(t, WithSolver(countingSolver(&calls)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := d.Solve(ctx, nil)
			assert.NoError(t, err)
			assert.Equal(t, 0.5, u.AtVec(1))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), calls.Load())
}

func TestSolve_StateMachine(t *testing.T) {
	var transitions []string
	hook := func(_ context.Context, name string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	d := diagSystem(t, WithStateHook(hook))

	_, err := d.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"unsolved->assembling", "assembling->solving", "solving->solved"}, transitions)

	transitions = nil
	_, err = d.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, transitions, "a cached solve never enters the state machine")
}

func TestSolve_ZeroDimension(t *testing.T) {
	var calls atomic.Int64
	op, err := operator.NewConstant("empty", &mat.Dense{})
	require.NoError(t, err)
	rhs, err := operator.NewFunctional("none", nil)
	require.NoError(t, err)
	d, err := New(op, rhs, WithSolver(countingSolver(&calls)))
	require.NoError(t, err)

	u, err := d.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, u.Len())
	assert.Equal(t, int64(0), calls.Load())
}

func TestNew_DimensionMismatch(t *testing.T) {
	op, err := operator.NewConstant("a", mat.NewDense(3, 3, nil))
	require.NoError(t, err)
	rhs, err := operator.NewFunctional("f", []float64{1, 1})
	require.NoError(t, err)
	_, err = New(op, rhs)
	assert.ErrorIs(t, err, linalg.ErrDimensionMismatch)

	rect, err := operator.NewConstant("rect", mat.NewDense(2, 3, nil))
	require.NoError(t, err)
	f3, err := operator.NewFunctional("f3", []float64{1, 1, 1})
	require.NoError(t, err)
	_, err = New(rect, f3)
	assert.ErrorIs(t, err, linalg.ErrDimensionMismatch)

	_, err = New(op, op)
	assert.ErrorIs(t, err, linalg.ErrDimensionMismatch, "rhs must have range dimension 1")
}

func TestNew_SchemaConflict(t *testing.T) {
	vecType := params.MustType(map[string]params.Shape{"c": {1}})
	pairType := params.MustType(map[string]params.Shape{"c": {2}})

	op, err := operator.NewDense("a", 2, 2, func(context.Context, params.Value) (*mat.Dense, error) {
		return mat.NewDense(2, 2, nil), nil
	}, operator.WithParameterType(vecType))
	require.NoError(t, err)
	rhs, err := operator.NewDense("f", 1, 2, func(context.Context, params.Value) (*mat.Dense, error) {
		return mat.NewDense(1, 2, nil), nil
	}, operator.WithParameterType(pairType))
	require.NoError(t, err)

	_, err = New(op, rhs)
	assert.ErrorIs(t, err, params.ErrSchemaConflict)
}

func TestSolve_MissingParameter(t *testing.T) {
	var hooked atomic.Int64
	d := heatSystem(t, 4, WithStateHook(func(context.Context, string, State, State) { hooked.Add(1) }))

	assert.Equal(t, []string{"diffusion"}, d.ParameterType().Names())
	_, err := d.Solve(ctx, params.Raw{})
	assert.ErrorIs(t, err, params.ErrParameterValidation)
	assert.Equal(t, int64(0), hooked.Load(), "nothing is assembled for an invalid parameter")
}

func TestSolve_CachedMatchesUncached(t *testing.T) {
	d := heatSystem(t, 16, WithDisableLogging())
	rng := rand.New(rand.NewPCG(11, 12))

	for i := 0; i < 50; i++ {
		raw := params.Raw{"diffusion": 0.1 + 2*rng.Float64()}
		got, err := d.Solve(ctx, raw)
		require.NoError(t, err)
		want, err := d.SolveUncached(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, linalg.VectorData(want), linalg.VectorData(got))
	}
}

func TestSolve_AffineCachedMatchesUncached(t *testing.T) {
	heat, err := operator.NewDiffusion1D("heat", 8)
	require.NoError(t, err)
	mass, err := operator.NewConstant("mass", mat.NewDiagDense(9, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}))
	require.NoError(t, err)
	op, err := operator.NewAffine("reaction", operator.FixedTerm(heat, 1), operator.ParamTerm(mass, "sigma"))
	require.NoError(t, err)
	rhs, err := operator.NewLoad1D("load", 8, 1)
	require.NoError(t, err)
	d, err := New(op, rhs, WithDisableLogging())
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(13, 14))
	for i := 0; i < 50; i++ {
		raw := params.Raw{"diffusion": 0.5 + rng.Float64(), "sigma": rng.Float64()}
		got, err := d.Solve(ctx, raw)
		require.NoError(t, err)
		want, err := d.SolveUncached(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, linalg.VectorData(want), linalg.VectorData(got))
	}
}

func TestSolve_HeatSolutionIsAccurate(t *testing.T) {
	d := heatSystem(t, 32, WithDisableLogging())

	// -u'' = 1, u(0) = u(1) = 0 has u = x(1-x)/2, which linear elements
	// reproduce exactly at the nodes.
	u, err := d.Solve(ctx, params.Raw{"diffusion": 1.0})
	require.NoError(t, err)
	for i := 0; i < u.Len(); i++ {
		x := float64(i) / 32
		assert.InDelta(t, x*(1-x)/2, u.AtVec(i), 1e-8)
	}
}

func TestSolve_FailuresAreReportedAndNotCached(t *testing.T) {
	var calls atomic.Int64
	var last State
	op, err := operator.NewConstant("singular", mat.NewDense(2, 2, []float64{1, 2, 2, 4}))
	require.NoError(t, err)
	rhs, err := operator.NewFunctional("f", []float64{1, 1})
	require.NoError(t, err)
	d, err := New(op, rhs,
		WithSolver(countingSolver(&calls)),
		WithStateHook(func(_ context.Context, _ string, _, to State) { last = to }))
	require.NoError(t, err)

	_, err = d.Solve(ctx, nil)
	assert.ErrorIs(t, err, linalg.ErrSolveFailure)
	assert.Equal(t, StateFailed, last)

	_, err = d.Solve(ctx, nil)
	assert.Error(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestSolve_NonConvergence(t *testing.T) {
	d := heatSystem(t, 64, WithSolverConfig(1e-300, 1), WithDisableLogging())

	_, err := d.Solve(ctx, params.Raw{"diffusion": 1.0})
	require.ErrorIs(t, err, linalg.ErrSolveNonConvergence)

	var nc *linalg.NonConvergenceError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, 1, nc.Iterations)
	assert.NotNil(t, nc.X)
}

// countedState counts how often its state is fingerprinted.
type countedState struct{ calls atomic.Int64 }

func (c *countedState) CacheState() (string, []any) {
	c.calls.Add(1)
	return "countedState", nil
}

func TestSolve_OperatorsFingerprintedOnce(t *testing.T) {
	state := &countedState{}
	typ := params.MustType(map[string]params.Shape{"k": {}})
	op, err := operator.NewDense("scaled", 2, 2, func(_ context.Context, mu params.Value) (*mat.Dense, error) {
		k, err := mu.Scalar("k")
		if err != nil {
			return nil, err
		}
		return mat.NewDense(2, 2, []float64{k, 0, 0, k}), nil
	}, operator.WithParameterType(typ), operator.WithState(state))
	require.NoError(t, err)
	rhs, err := operator.NewFunctional("ones", []float64{1, 1})
	require.NoError(t, err)
	d, err := New(op, rhs, WithDisableLogging())
	require.NoError(t, err)

	_, err = d.Solve(ctx, params.Raw{"k": 1.0})
	require.NoError(t, err)
	after := state.calls.Load()

	for k := 2; k <= 6; k++ {
		u, err := d.Solve(ctx, params.Raw{"k": float64(k)})
		require.NoError(t, err)
		assert.InDelta(t, 1/float64(k), u.AtVec(0), 1e-15)
	}
	assert.Equal(t, after, state.calls.Load())
}

func TestSetSolver_InvalidatesFingerprint(t *testing.T) {
	var first, second atomic.Int64
	d := diagSystem(t, WithSolver(countingSolver(&first)))
	before := cache.MustFingerprint(d)

	_, err := d.Solve(ctx, nil)
	require.NoError(t, err)

	d.SetSolver(linalg.SolverFunc{ID: "second", Fn: countingSolver(&second).Solve})
	assert.NotEqual(t, before, cache.MustFingerprint(d))

	_, err = d.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Load())
	assert.Equal(t, int64(1), second.Load())

	d.SetSolver(nil)
	_, ok := d.Solver().(linalg.Dispatch)
	assert.True(t, ok)
}

func TestFingerprint_IndependentConstruction(t *testing.T) {
	a := heatSystem(t, 8)
	b := heatSystem(t, 8, WithDisableLogging(), WithName("other"))
	c := heatSystem(t, 9)

	assert.Equal(t, cache.MustFingerprint(a), cache.MustFingerprint(b), "name and logging are not cache-relevant")
	assert.NotEqual(t, cache.MustFingerprint(a), cache.MustFingerprint(c))

	b.SetSolver(linalg.Direct{})
	assert.NotEqual(t, cache.MustFingerprint(a), cache.MustFingerprint(b))
	assert.Equal(t, cache.MustFingerprint(heatSystem(t, 8)), cache.MustFingerprint(a), "mutating b leaves a unchanged")
}

func TestCopy_HasOwnCache(t *testing.T) {
	var calls atomic.Int64
	d := diagSystem(t, WithSolver(countingSolver(&calls)))
	_, err := d.Solve(ctx, nil)
	require.NoError(t, err)

	c := d.Copy()
	assert.NotSame(t, d.Memo(), c.Memo())
	assert.Equal(t, cache.MustFingerprint(d), cache.MustFingerprint(c))

	_, err = c.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "the copy starts with an empty cache")

	c.SetSolver(linalg.Direct{})
	assert.NotEqual(t, cache.MustFingerprint(d), cache.MustFingerprint(c))
	_, isFunc := d.Solver().(linalg.SolverFunc)
	assert.True(t, isFunc, "mutating the copy leaves the source discretization unchanged")
}

func TestSolve_DiskCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solutions.db")
	var calls atomic.Int64

	disk, err := cache.OpenDiskCache(cache.DiskConfig{Path: path})
	require.NoError(t, err)
	d := diagSystem(t, WithSolver(countingSolver(&calls)), WithCache(disk, cache.DefaultPolicy()))
	want, err := d.Solve(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, disk.Close())

	disk, err = cache.OpenDiskCache(cache.DiskConfig{Path: path})
	require.NoError(t, err)
	defer disk.Close()
	fresh := diagSystem(t, WithSolver(countingSolver(&calls)), WithCache(disk, cache.DefaultPolicy()))

	got, err := fresh.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, linalg.VectorData(want), linalg.VectorData(got))
	assert.Equal(t, int64(1), calls.Load())
}

func TestSolve_Logging(t *testing.T) {
	var buf bytes.Buffer
	d := heatSystem(t, 4, WithLogger(observe.NewLoggerWithWriter("info", &buf)))

	_, err := d.Solve(ctx, params.Raw{"diffusion": 1.0})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "solving heat (sparse) for {diffusion: ")

	buf.Reset()
	quiet := heatSystem(t, 4, WithLogger(observe.NewLoggerWithWriter("info", &buf)), WithDisableLogging())
	_, err = quiet.Solve(ctx, params.Raw{"diffusion": 1.0})
	require.NoError(t, err)
	assert.False(t, strings.Contains(buf.String(), "solving"))
}

func TestWithObserver(t *testing.T) {
	var buf bytes.Buffer
	cfg := observe.DefaultConfig()
	cfg.Output = &buf
	obs, err := observe.NewObserver(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = obs.Shutdown(ctx) }()

	d := diagSystem(t, WithObserver(obs), WithName("diag"))
	_, err = d.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "solving diag (dense)")
}

func TestOptions_Validation(t *testing.T) {
	op, err := operator.NewConstant("a", mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	rhs, err := operator.NewFunctional("f", []float64{1})
	require.NoError(t, err)

	_, err = New(op, rhs, WithCache(nil, cache.DefaultPolicy()))
	assert.ErrorIs(t, err, cache.ErrNilCache)
	_, err = New(op, rhs, WithSolverConfig(-1, 0))
	assert.Error(t, err)
}

func TestVisualize(t *testing.T) {
	d := diagSystem(t)
	assert.ErrorIs(t, d.Visualize(mat.NewVecDense(3, nil)), ErrNoVisualizer)

	var seen *mat.VecDense
	v := diagSystem(t, WithVisualizer(func(u *mat.VecDense) error {
		seen = u
		return nil
	}))
	u, err := v.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, seen, "Solve never visualizes")
	require.NoError(t, v.Visualize(u))
	assert.Same(t, u, seen)
}

func TestOperators(t *testing.T) {
	d := diagSystem(t)
	ops := d.Operators()
	assert.Len(t, ops, 2)
	assert.Equal(t, "diag", ops[OperatorName].Name())
	assert.Equal(t, "ones", d.RHS().Name())
	assert.Equal(t, 3, d.SolutionDim())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "assembling", StateAssembling.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSolving.Terminal())
	assert.Panics(t, func() {
		r := &run{state: StateSolved}
		r.to(StateAssembling)
	})
}
