package operator

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/params"
)

// DenseAssembler computes a dense matrix for a validated parameter value.
type DenseAssembler func(ctx context.Context, mu params.Value) (*mat.Dense, error)

// SparseAssembler computes a sparse matrix for a validated parameter value.
type SparseAssembler func(ctx context.Context, mu params.Value) (*linalg.CSR, error)

// Option configures an assembler-backed operator.
type Option func(*base)

// WithState declares attributes the assembler depends on besides the
// parameter value, such as a grid or boundary data. They become part of the
// operator's cache identity.
func WithState(fields ...any) Option {
	return func(b *base) {
		b.state = append(b.state, fields...)
	}
}

// WithParameterType sets the parameter schema. Default: the empty type.
func WithParameterType(t *params.Type) Option {
	return func(b *base) {
		b.typ = t
	}
}

// base holds what every assembler-backed variant declares. The assembler
// function itself cannot be fingerprinted; name and state stand in for it.
type base struct {
	name   string
	source int
	rng    int
	typ    *params.Type
	state  []any
}

func newBase(name string, rng, source int, opts []Option) (base, error) {
	b := base{name: name, source: source, rng: rng}
	for _, opt := range opts {
		opt(&b)
	}
	if name == "" {
		return base{}, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if rng < 0 || source < 0 {
		return base{}, fmt.Errorf("%w: negative extents %dx%d", ErrInvalidArgument, rng, source)
	}
	return b, nil
}

func (b *base) Name() string                { return b.name }
func (b *base) DimSource() int              { return b.source }
func (b *base) DimRange() int               { return b.rng }
func (b *base) ParameterType() *params.Type { return b.typ }

func (b *base) cacheState(kind string) (string, []any) {
	fields := []any{b.name, b.rng, b.source, b.typ}
	return kind, append(fields, b.state...)
}

// Dense is an operator assembled into a *mat.Dense by a function.
type Dense struct {
	base
	assemble DenseAssembler
}

// NewDense creates a rows x cols operator assembled by fn.
func NewDense(name string, rows, cols int, fn DenseAssembler, opts ...Option) (*Dense, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil assembler for %q", ErrInvalidArgument, name)
	}
	b, err := newBase(name, rows, cols, opts)
	if err != nil {
		return nil, err
	}
	return &Dense{base: b, assemble: fn}, nil
}

// Assemble calls the assembler.
func (d *Dense) Assemble(ctx context.Context, mu params.Value) (any, error) {
	return d.assemble(ctx, mu)
}

// CacheState identifies d by name, extents, parameter type and declared state.
func (d *Dense) CacheState() (string, []any) { return d.cacheState("operator.Dense") }

// Sparse is an operator assembled into a *linalg.CSR by a function.
type Sparse struct {
	base
	assemble SparseAssembler
}

// NewSparse creates a rows x cols operator assembled by fn.
func NewSparse(name string, rows, cols int, fn SparseAssembler, opts ...Option) (*Sparse, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil assembler for %q", ErrInvalidArgument, name)
	}
	b, err := newBase(name, rows, cols, opts)
	if err != nil {
		return nil, err
	}
	return &Sparse{base: b, assemble: fn}, nil
}

// Assemble calls the assembler.
func (s *Sparse) Assemble(ctx context.Context, mu params.Value) (any, error) {
	return s.assemble(ctx, mu)
}

// CacheState identifies s by name, extents, parameter type and declared state.
func (s *Sparse) CacheState() (string, []any) { return s.cacheState("operator.Sparse") }

// Constant is a non-parametric operator holding a fixed matrix or
// functional vector.
type Constant struct {
	name  string
	rows  int
	cols  int
	value any // *mat.Dense, *linalg.CSR or *mat.VecDense
}

// NewConstant creates an operator whose matrix is m. Dense inputs are
// copied; a *linalg.CSR is stored as is.
func NewConstant(name string, m mat.Matrix) (*Constant, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: nil matrix for %q", ErrInvalidArgument, name)
	}
	r, c := m.Dims()
	var value any
	switch x := m.(type) {
	case *linalg.CSR:
		value = x
	default:
		value = linalg.NewDense(r, c, linalg.MatrixData(x))
	}
	return &Constant{name: name, rows: r, cols: c, value: value}, nil
}

// NewFunctional creates a constant linear functional v^T: a 1 x len(v)
// operator assembled as a vector.
func NewFunctional(name string, v []float64) (*Constant, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	return &Constant{name: name, rows: 1, cols: len(v), value: linalg.NewVector(v)}, nil
}

func (c *Constant) Name() string                { return c.name }
func (c *Constant) DimSource() int              { return c.cols }
func (c *Constant) DimRange() int               { return c.rows }
func (c *Constant) ParameterType() *params.Type { return nil }

// Assemble returns a copy of the stored matrix. Stored CSR matrices are
// returned directly since they are never modified.
func (c *Constant) Assemble(context.Context, params.Value) (any, error) {
	switch x := c.value.(type) {
	case *mat.Dense:
		return linalg.NewDense(c.rows, c.cols, linalg.MatrixData(x)), nil
	case *mat.VecDense:
		return linalg.NewVector(linalg.VectorData(x)), nil
	default:
		return c.value, nil
	}
}

// CacheState identifies c by its name and matrix content.
func (c *Constant) CacheState() (string, []any) {
	return "operator.Constant", []any{c.name, c.rows, c.cols, c.value}
}

var (
	_ Operator = (*Dense)(nil)
	_ Operator = (*Sparse)(nil)
	_ Operator = (*Constant)(nil)
)
