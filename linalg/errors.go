package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sentinel errors for linear algebra operations.
var (
	ErrBadShape          = errors.New("linalg: invalid shape")
	ErrOutOfRange        = errors.New("linalg: index out of range")
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrSolveFailure is returned when a direct solve meets a singular or
	// ill-conditioned matrix.
	ErrSolveFailure = errors.New("linalg: solve failed")

	// ErrSolveNonConvergence is returned when an iterative solver does not
	// reach its tolerance within its iteration cap.
	ErrSolveNonConvergence = errors.New("linalg: solver did not converge")

	// ErrInvalidSettings is returned for solver settings outside their
	// valid range.
	ErrInvalidSettings = errors.New("linalg: invalid solver settings")

	// ErrUnsupportedStorage is returned for values with no storage class.
	ErrUnsupportedStorage = errors.New("linalg: unsupported storage class")
)

// SolveFailureError reports a failed direct solve.
type SolveFailureError struct {
	// Condition is the estimated condition number, +Inf for singular input.
	Condition float64
	Err       error
}

func (e *SolveFailureError) Error() string {
	return fmt.Sprintf("linalg: solve failed: matrix singular or ill-conditioned (condition %g)", e.Condition)
}

// Unwrap returns ErrSolveFailure and the underlying error.
func (e *SolveFailureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSolveFailure}
	}
	return []error{ErrSolveFailure, e.Err}
}

// NonConvergenceError reports an iterative solve that hit its iteration cap
// or broke down.
type NonConvergenceError struct {
	Iterations int
	Residual   float64
	Tolerance  float64
	// X is the best available iterate.
	X *mat.VecDense
	// Breakdown is set when the iteration stopped for a reason other than
	// the cap, such as a vanishing inner product.
	Breakdown bool
	// Err is the underlying linsolve error.
	Err error
}

func (e *NonConvergenceError) Error() string {
	if e.Breakdown {
		return fmt.Sprintf("linalg: solver did not converge: breakdown after %d iterations (residual %g, tolerance %g)",
			e.Iterations, e.Residual, e.Tolerance)
	}
	return fmt.Sprintf("linalg: solver did not converge in %d iterations (residual %g, tolerance %g)",
		e.Iterations, e.Residual, e.Tolerance)
}

// Unwrap returns ErrSolveNonConvergence and the linsolve error.
func (e *NonConvergenceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSolveNonConvergence}
	}
	return []error{ErrSolveNonConvergence, e.Err}
}
