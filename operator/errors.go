package operator

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/paramsolve/linalg"
)

// Sentinel errors.
var (
	// ErrNonConformant indicates an operator that violates the Operator
	// contract, or an assembled result of the wrong shape or storage class.
	ErrNonConformant = errors.New("operator: non-conformant operator")

	// ErrInvalidArgument indicates a bad constructor argument.
	ErrInvalidArgument = errors.New("operator: invalid argument")
)

// ResultError describes an assembled result that does not match the
// operator's declared extents or storage class.
type ResultError struct {
	Operator   string
	Storage    linalg.Storage
	Rows, Cols int
	WantRows   int
	WantCols   int
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("operator: %q assembled %s %dx%d, want %dx%d",
		e.Operator, e.Storage, e.Rows, e.Cols, e.WantRows, e.WantCols)
}

func (e *ResultError) Unwrap() error { return ErrNonConformant }
