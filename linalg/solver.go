package linalg

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/exp/linsolve"
	"gonum.org/v1/gonum/mat"
)

// Default iterative solver settings.
const (
	// DefaultBiCGTol is the relative residual tolerance of BiCG.
	DefaultBiCGTol = 1e-10

	// DefaultBiCGIterFactor scales the system size into the default
	// iteration cap when BiCG.MaxIter is zero.
	DefaultBiCGIterFactor = 10
)

// Solver solves A x = b.
//
// Contract:
// - Purity: Solve must not modify a or b.
// - Errors: numerical failure is reported as ErrSolveFailure or
// ErrSolveNonConvergence, never as a zero or partial vector.
// - Identity: CacheState describes every setting that affects the result.
type Solver interface {
	Solve(ctx context.Context, a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error)
	CacheState() (kind string, fields []any)
}

func checkSystem(a mat.Matrix, b *mat.VecDense) (int, error) {
	r, c := a.Dims()
	if r != c {
		return 0, fmt.Errorf("%w: system matrix is %dx%d", ErrDimensionMismatch, r, c)
	}
	if b.Len() != r {
		return 0, fmt.Errorf("%w: matrix is %dx%d, rhs has length %d", ErrDimensionMismatch, r, c, b.Len())
	}
	return r, nil
}

// Direct solves with an LU factorization with partial pivoting.
type Direct struct{}

// Solve factorizes a and solves for b.
func (Direct) Solve(ctx context.Context, a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := checkSystem(a, b)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &mat.VecDense{}, nil
	}

	var lu mat.LU
	lu.Factorize(a)
	x := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, &SolveFailureError{Condition: float64(cond), Err: err}
		}
		return nil, &SolveFailureError{Condition: math.Inf(1), Err: err}
	}
	for i := 0; i < n; i++ {
		if v := x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &SolveFailureError{Condition: math.Inf(1)}
		}
	}
	return x, nil
}

// CacheState identifies the direct solver.
func (Direct) CacheState() (string, []any) { return "linalg.Direct", nil }

// BiCG is the biconjugate gradient method of gonum's linsolve. It works for
// any square matrix and uses the sparse product of a *CSR directly.
type BiCG struct {
	// Tol is the residual tolerance relative to the norm of b.
	// Default: DefaultBiCGTol
	Tol float64

	// MaxIter caps the number of iterations.
	// Default: DefaultBiCGIterFactor times the system size
	MaxIter int
}

func (s BiCG) tolerance() float64 {
	if s.Tol <= 0 {
		return DefaultBiCGTol
	}
	return s.Tol
}

func (s BiCG) maxIter(n int) int {
	if s.MaxIter <= 0 {
		return DefaultBiCGIterFactor * n
	}
	return s.MaxIter
}

// Solve runs linsolve's BiCG from a zero initial guess.
func (s BiCG) Solve(ctx context.Context, a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := checkSystem(a, b)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &mat.VecDense{}, nil
	}
	tol := s.tolerance()
	if tol >= 1 {
		return nil, fmt.Errorf("%w: BiCG tolerance %g must be below 1", ErrInvalidSettings, tol)
	}
	bNorm := mat.Norm(b, 2)
	if bNorm == 0 {
		return mat.NewVecDense(n, nil), nil
	}

	// linsolve tests the initial residual against Tol in absolute terms, so
	// iterate on the unit right-hand side and scale back.
	unit := mat.NewVecDense(n, nil)
	unit.ScaleVec(1/bNorm, b)

	maxIter := s.maxIter(n)
	res, err := linsolve.Iterative(mulVecToer(a), unit, &linsolve.BiCG{}, &linsolve.Settings{
		Tolerance:     tol,
		MaxIterations: maxIter,
	})
	if res != nil && res.X != nil {
		res.X.ScaleVec(bNorm, res.X)
	}
	if err == nil {
		return res.X, nil
	}

	nc := &NonConvergenceError{
		Iterations: maxIter,
		Residual:   math.NaN(),
		Tolerance:  tol,
		Breakdown:  !errors.Is(err, linsolve.ErrIterationLimit),
		Err:        err,
	}
	if res != nil {
		nc.Iterations = res.Stats.Iterations
		nc.Residual = res.ResidualNorm * bNorm
		nc.X = res.X
	}
	if nc.X == nil {
		nc.X = mat.NewVecDense(n, nil)
	}
	return nil, nc
}

// CacheState identifies BiCG and its settings.
func (s BiCG) CacheState() (string, []any) {
	return "linalg.BiCG", []any{s.tolerance(), s.MaxIter}
}

// denseMulVec adapts a mat.Matrix without its own product to
// linsolve.MulVecToer.
type denseMulVec struct{ m mat.Matrix }

func (d denseMulVec) MulVecTo(dst *mat.VecDense, trans bool, x mat.Vector) {
	if trans {
		dst.MulVec(d.m.T(), x)
		return
	}
	dst.MulVec(d.m, x)
}

func mulVecToer(a mat.Matrix) linsolve.MulVecToer {
	if m, ok := a.(linsolve.MulVecToer); ok {
		return m
	}
	return denseMulVec{m: a}
}

// Dispatch chooses a solver by the storage class of the system matrix:
// dense matrices go to Dense, sparse matrices to Sparse.
type Dispatch struct {
	// Dense solves dense systems. Default: Direct
	Dense Solver
	// Sparse solves sparse systems. Default: BiCG with default settings
	Sparse Solver
}

// NewDispatch returns the default dispatch with the given BiCG settings.
func NewDispatch(tol float64, maxIter int) Dispatch {
	return Dispatch{Dense: Direct{}, Sparse: BiCG{Tol: tol, MaxIter: maxIter}}
}

func (d Dispatch) dense() Solver {
	if d.Dense == nil {
		return Direct{}
	}
	return d.Dense
}

func (d Dispatch) sparse() Solver {
	if d.Sparse == nil {
		return BiCG{}
	}
	return d.Sparse
}

// For returns the solver used for a.
func (d Dispatch) For(a mat.Matrix) Solver {
	if IsSparse(a) {
		return d.sparse()
	}
	return d.dense()
}

// Solve dispatches to the solver for a.
func (d Dispatch) Solve(ctx context.Context, a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
	return d.For(a).Solve(ctx, a, b)
}

// CacheState identifies both branches of the dispatch.
func (d Dispatch) CacheState() (string, []any) {
	return "linalg.Dispatch", []any{d.dense(), d.sparse()}
}

// SolverFunc adapts a function into a Solver. ID must name the function
// and its settings uniquely, since functions cannot be fingerprinted by
// content.
type SolverFunc struct {
	ID string
	Fn func(ctx context.Context, a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error)
}

// Solve calls Fn.
func (f SolverFunc) Solve(ctx context.Context, a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
	return f.Fn(ctx, a, b)
}

// CacheState identifies the function by its ID.
func (f SolverFunc) CacheState() (string, []any) {
	return "linalg.SolverFunc", []any{f.ID}
}

var (
	_ Solver = Direct{}
	_ Solver = BiCG{}
	_ Solver = Dispatch{}
	_ Solver = SolverFunc{}
)
