// Package sweep runs parameter studies over a single discretization.
//
// Samples are solved concurrently up to a limit and the results are
// returned in input order. Identical samples in flight at the same time are
// solved once when the solver memoizes, as discretization.StationaryLinear
// does.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/params"
)

// ErrNilSolver is returned by Run when no solver is given.
var ErrNilSolver = errors.New("sweep: nil solver")

// Solver solves one raw parameter.
type Solver interface {
	Solve(ctx context.Context, raw params.Raw) (*mat.VecDense, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, raw params.Raw) (*mat.VecDense, error)

func (f SolverFunc) Solve(ctx context.Context, raw params.Raw) (*mat.VecDense, error) {
	return f(ctx, raw)
}

// Options configures Run.
type Options struct {
	// Concurrency bounds the number of solves in flight. Zero uses
	// GOMAXPROCS.
	Concurrency int
}

func (o Options) limit() int {
	if o.Concurrency <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Concurrency
}

// SampleError reports the sample that stopped a sweep.
type SampleError struct {
	Index int
	Raw   params.Raw
	Err   error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sweep: sample %d: %v", e.Index, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }

// Run solves every sample and returns the solutions in the order of
// samples. The first failure cancels the remaining solves and is returned
// as a *SampleError.
func Run(ctx context.Context, solver Solver, samples []params.Raw, opts Options) ([]*mat.VecDense, error) {
	if solver == nil {
		return nil, ErrNilSolver
	}
	out := make([]*mat.VecDense, len(samples))
	if len(samples) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())
	for i, raw := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, err := solver.Solve(gctx, raw)
			if err != nil {
				return &SampleError{Index: i, Raw: raw, Err: err}
			}
			out[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Grid returns the samples of component name taking each of values, on top
// of the fixed components of base. base is not modified.
func Grid(base params.Raw, name string, values []float64) []params.Raw {
	out := make([]params.Raw, len(values))
	for i, v := range values {
		raw := make(params.Raw, len(base)+1)
		for k, bv := range base {
			raw[k] = bv
		}
		raw[name] = v
		out[i] = raw
	}
	return out
}
