package operator

import (
	"context"
	"fmt"

	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/params"
)

// DiffusionComponent is the parameter component scaling a Diffusion1D.
const DiffusionComponent = "diffusion"

// Diffusion1D is the stiffness matrix of -d u'' on [0, 1] discretized with
// linear elements on a uniform grid, with Dirichlet conditions at both ends.
// The diffusivity d is the scalar parameter component "diffusion", which
// has no default.
//
// Boundary rows are replaced by unit rows. ClearDiagonal puts zero instead
// of one on the boundary diagonal; ClearColumns also removes the coupling
// of interior rows to the boundary nodes.
type Diffusion1D struct {
	name          string
	elements      int
	clearColumns  bool
	clearDiagonal bool
}

// DiffusionOption configures a Diffusion1D.
type DiffusionOption func(*Diffusion1D)

// WithClearColumns zeroes the boundary columns outside the diagonal.
func WithClearColumns() DiffusionOption {
	return func(d *Diffusion1D) { d.clearColumns = true }
}

// WithClearDiagonal zeroes the boundary diagonal entries.
func WithClearDiagonal() DiffusionOption {
	return func(d *Diffusion1D) { d.clearDiagonal = true }
}

// NewDiffusion1D creates the operator on a grid of elements cells, that is
// elements+1 nodes.
func NewDiffusion1D(name string, elements int, opts ...DiffusionOption) (*Diffusion1D, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if elements < 1 {
		return nil, fmt.Errorf("%w: %q needs at least one element, got %d", ErrInvalidArgument, name, elements)
	}
	d := &Diffusion1D{name: name, elements: elements}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

var diffusionType = params.MustType(map[string]params.Shape{DiffusionComponent: {}})

func (d *Diffusion1D) Name() string                { return d.name }
func (d *Diffusion1D) DimSource() int              { return d.elements + 1 }
func (d *Diffusion1D) DimRange() int               { return d.elements + 1 }
func (d *Diffusion1D) ParameterType() *params.Type { return diffusionType }

// Assemble builds the sparse stiffness matrix for mu["diffusion"].
func (d *Diffusion1D) Assemble(_ context.Context, mu params.Value) (any, error) {
	k, err := mu.Scalar(DiffusionComponent)
	if err != nil {
		return nil, err
	}

	n := d.elements + 1
	last := n - 1
	h := 1 / float64(d.elements)
	c := k / h

	boundary := func(i int) bool { return i == 0 || i == last }

	is := make([]int, 0, 4*d.elements+2)
	js := make([]int, 0, 4*d.elements+2)
	vs := make([]float64, 0, 4*d.elements+2)
	add := func(i, j int, v float64) {
		if boundary(i) {
			return
		}
		if d.clearColumns && boundary(j) {
			return
		}
		is = append(is, i)
		js = append(js, j)
		vs = append(vs, v)
	}

	for e := 0; e < d.elements; e++ {
		a, b := e, e+1
		add(a, a, c)
		add(a, b, -c)
		add(b, a, -c)
		add(b, b, c)
	}

	diag := 1.0
	if d.clearDiagonal {
		diag = 0
	}
	for _, i := range []int{0, last} {
		is = append(is, i)
		js = append(js, i)
		vs = append(vs, diag)
	}

	return linalg.NewCSRFromTriplets(n, n, is, js, vs)
}

// CacheState identifies d by grid size and boundary treatment.
func (d *Diffusion1D) CacheState() (string, []any) {
	return "operator.Diffusion1D", []any{d.name, d.elements, d.clearColumns, d.clearDiagonal}
}

// Load1D is the load functional of a constant source f on the grid of a
// Diffusion1D with the same number of elements. Boundary entries hold the
// Dirichlet value, which is zero.
type Load1D struct {
	name     string
	elements int
	source   float64
}

// NewLoad1D creates the load functional for source f.
func NewLoad1D(name string, elements int, f float64) (*Load1D, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if elements < 1 {
		return nil, fmt.Errorf("%w: %q needs at least one element, got %d", ErrInvalidArgument, name, elements)
	}
	return &Load1D{name: name, elements: elements, source: f}, nil
}

func (l *Load1D) Name() string                { return l.name }
func (l *Load1D) DimSource() int              { return l.elements + 1 }
func (l *Load1D) DimRange() int               { return 1 }
func (l *Load1D) ParameterType() *params.Type { return nil }

// Assemble returns the load vector.
func (l *Load1D) Assemble(context.Context, params.Value) (any, error) {
	n := l.elements + 1
	h := 1 / float64(l.elements)
	v := make([]float64, n)
	for i := 1; i < n-1; i++ {
		v[i] = h * l.source
	}
	return linalg.NewVector(v), nil
}

// CacheState identifies l by grid size and source.
func (l *Load1D) CacheState() (string, []any) {
	return "operator.Load1D", []any{l.name, l.elements, l.source}
}

var (
	_ Operator = (*Diffusion1D)(nil)
	_ Operator = (*Load1D)(nil)
)
