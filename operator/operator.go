package operator

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/params"
)

// Operator is a linear map from R^DimSource to R^DimRange whose matrix
// depends on a parameter value.
//
// Contract:
//   - Purity: Assemble is a function of (CacheState, mu) only. Equal state
//     and equal mu produce bit-identical results.
//   - Shape: Assemble returns a *mat.Dense or *linalg.CSR of dimensions
//     DimRange x DimSource. An operator with DimRange 1 may instead return
//     a *mat.VecDense of length DimSource.
//   - Parameters: mu has been validated against ParameterType.
//   - Ownership: results are not modified after they are returned.
//   - Concurrency: Assemble must be safe for concurrent use.
type Operator interface {
	params.Parametric
	cache.Stateful

	// Name identifies the operator in logs and errors.
	Name() string

	// DimSource is the dimension of the domain.
	DimSource() int

	// DimRange is the dimension of the codomain.
	DimRange() int

	// Assemble produces the matrix for mu.
	Assemble(ctx context.Context, mu params.Value) (any, error)
}

// Check verifies the static part of the Operator contract: a name,
// non-negative extents and a fingerprintable state.
func Check(op Operator) error {
	if op == nil {
		return fmt.Errorf("%w: nil operator", ErrNonConformant)
	}
	if op.Name() == "" {
		return fmt.Errorf("%w: empty name", ErrNonConformant)
	}
	if op.DimSource() < 0 || op.DimRange() < 0 {
		return fmt.Errorf("%w: %q has negative extents %dx%d",
			ErrNonConformant, op.Name(), op.DimRange(), op.DimSource())
	}
	if _, err := cache.Fingerprint(op); err != nil {
		return fmt.Errorf("%w: %q state: %w", ErrNonConformant, op.Name(), err)
	}
	return nil
}

// CheckResult verifies that result is a valid assembly of op.
func CheckResult(op Operator, result any) error {
	if isNilResult(result) {
		return fmt.Errorf("%w: %q returned a nil %T", ErrNonConformant, op.Name(), result)
	}
	storage := linalg.StorageOf(result)
	rows, cols := linalg.Dims(result)
	wantRows, wantCols := op.DimRange(), op.DimSource()

	switch storage {
	case linalg.StorageDense, linalg.StorageSparse:
		if rows == wantRows && cols == wantCols {
			return nil
		}
		// gonum has a single empty matrix, reported as 0x0.
		if rows*cols == 0 && wantRows*wantCols == 0 {
			return nil
		}
	case linalg.StorageVector:
		if wantRows == 1 && rows == wantCols {
			return nil
		}
	default:
		return fmt.Errorf("%w: %q assembled unsupported %T", ErrNonConformant, op.Name(), result)
	}
	return &ResultError{
		Operator: op.Name(),
		Storage:  storage,
		Rows:     rows,
		Cols:     cols,
		WantRows: wantRows,
		WantCols: wantCols,
	}
}

// AssembleRaw parses raw against op's parameter type and assembles op
// without consulting any cache.
func AssembleRaw(ctx context.Context, op Operator, raw params.Raw) (any, error) {
	mu, err := op.ParameterType().Parse(raw)
	if err != nil {
		return nil, err
	}
	return assembleChecked(ctx, op, mu)
}

func assembleChecked(ctx context.Context, op Operator, mu params.Value) (any, error) {
	result, err := op.Assemble(ctx, mu)
	if err != nil {
		return nil, fmt.Errorf("operator: assemble %q: %w", op.Name(), err)
	}
	if err := CheckResult(op, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AsVector returns the assembled result of a linear functional as a vector
// of length DimSource. Matrices of one row are flattened.
func AsVector(result any) (*mat.VecDense, error) {
	switch x := result.(type) {
	case *mat.VecDense:
		return x, nil
	case mat.Matrix:
		r, _ := x.Dims()
		if r != 1 {
			return nil, fmt.Errorf("%w: functional has %d rows", ErrNonConformant, r)
		}
		return linalg.NewVector(linalg.MatrixData(x)), nil
	default:
		return nil, fmt.Errorf("%w: %T is not a functional", ErrNonConformant, result)
	}
}

func isNilResult(result any) bool {
	switch r := result.(type) {
	case nil:
		return true
	case *mat.Dense:
		return r == nil
	case *mat.VecDense:
		return r == nil
	case *linalg.CSR:
		return r == nil
	}
	return false
}
