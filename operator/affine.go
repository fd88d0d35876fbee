package operator

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/params"
)

// Term is one summand theta(mu) * A of an Affine operator.
type Term struct {
	op        Operator
	component string  // scalar parameter component used as theta; "" for a fixed weight
	weight    float64 // fixed theta when component is ""
	rename    map[string]string
}

// ParamTerm returns the term mu[component] * op. component becomes a scalar
// parameter component of the combination.
func ParamTerm(op Operator, component string) Term {
	return Term{op: op, component: component, weight: 1}
}

// FixedTerm returns the term weight * op.
func FixedTerm(op Operator, weight float64) Term {
	return Term{op: op, weight: weight}
}

// WithRename exposes the parameter components of the term's operator under
// different names, mapping the operator's local names to global ones.
func (t Term) WithRename(rename map[string]string) Term {
	cp := make(map[string]string, len(rename))
	for k, v := range rename {
		cp[k] = v
	}
	t.rename = cp
	return t
}

// Affine is the parameter-separable operator sum_q theta_q(mu) A_q.
//
// Its parameter type merges the scalar coefficient components with the
// parameter types of all A_q. Each A_q is assembled with its own projection
// of mu.
type Affine struct {
	name   string
	rows   int
	cols   int
	terms  []Term
	scheme *params.Scheme
}

// NewAffine combines terms into one operator. All operators must have the
// same extents.
func NewAffine(name string, terms ...Term) (*Affine, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: %q has no terms", ErrInvalidArgument, name)
	}

	rows, cols := terms[0].op.DimRange(), terms[0].op.DimSource()
	coefficients := make(map[string]params.Shape)
	inherits := make([]params.Inherit, len(terms))
	for i, t := range terms {
		if err := Check(t.op); err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		if t.op.DimRange() != rows || t.op.DimSource() != cols {
			return nil, fmt.Errorf("%w: %q term %d is %dx%d, want %dx%d", linalg.ErrDimensionMismatch,
				name, i, t.op.DimRange(), t.op.DimSource(), rows, cols)
		}
		if t.component != "" {
			coefficients[t.component] = params.Shape{}
		}
		inherits[i] = params.Inherit{Name: termName(i), Entity: t.op, Rename: t.rename}
	}

	local, err := params.NewType(coefficients)
	if err != nil {
		return nil, err
	}
	scheme, err := params.BuildScheme(local, inherits...)
	if err != nil {
		return nil, fmt.Errorf("operator %q: %w", name, err)
	}

	return &Affine{
		name:   name,
		rows:   rows,
		cols:   cols,
		terms:  append([]Term(nil), terms...),
		scheme: scheme,
	}, nil
}

func termName(i int) string { return fmt.Sprintf("term%d", i) }

func (a *Affine) Name() string                { return a.name }
func (a *Affine) DimSource() int              { return a.cols }
func (a *Affine) DimRange() int               { return a.rows }
func (a *Affine) ParameterType() *params.Type { return a.scheme.ParameterType() }

// Len returns the number of terms.
func (a *Affine) Len() int { return len(a.terms) }

// Coefficients evaluates theta_q(mu) for every term.
func (a *Affine) Coefficients(mu params.Value) ([]float64, error) {
	out := make([]float64, len(a.terms))
	for i, t := range a.terms {
		if t.component == "" {
			out[i] = t.weight
			continue
		}
		theta, err := mu.Scalar(t.component)
		if err != nil {
			return nil, err
		}
		out[i] = t.weight * theta
	}
	return out, nil
}

// Assemble assembles every term under its projected parameter and sums
// them. The sum is sparse when every term is sparse, a vector when every
// term is a vector, and dense otherwise.
func (a *Affine) Assemble(ctx context.Context, mu params.Value) (any, error) {
	thetas, err := a.Coefficients(mu)
	if err != nil {
		return nil, err
	}

	parts := make([]any, len(a.terms))
	for i, t := range a.terms {
		sub, err := a.scheme.Map(mu, termName(i))
		if err != nil {
			return nil, err
		}
		parts[i], err = assembleChecked(ctx, t.op, sub)
		if err != nil {
			return nil, err
		}
	}
	return combine(a.rows, a.cols, parts, thetas)
}

// CacheState identifies a by its terms.
func (a *Affine) CacheState() (string, []any) {
	fields := []any{a.name}
	for _, t := range a.terms {
		rename := make(map[string]any, len(t.rename))
		for k, v := range t.rename {
			rename[k] = v
		}
		fields = append(fields, t.op, t.component, t.weight, rename)
	}
	return "operator.Affine", fields
}

func combine(rows, cols int, parts []any, thetas []float64) (any, error) {
	var sparse, vectors int
	for _, p := range parts {
		switch linalg.StorageOf(p) {
		case linalg.StorageSparse:
			sparse++
		case linalg.StorageVector:
			vectors++
		}
	}

	switch {
	case vectors == len(parts):
		sum := make([]float64, cols)
		for q, p := range parts {
			v := p.(*mat.VecDense)
			for j := range sum {
				sum[j] += thetas[q] * v.AtVec(j)
			}
		}
		return linalg.NewVector(sum), nil

	case vectors > 0:
		return nil, fmt.Errorf("%w: affine combination mixes vectors and matrices", ErrNonConformant)

	case sparse == len(parts):
		var is, js []int
		var vs []float64
		for q, p := range parts {
			p.(*linalg.CSR).DoNonZero(func(i, j int, v float64) {
				is = append(is, i)
				js = append(js, j)
				vs = append(vs, thetas[q]*v)
			})
		}
		return linalg.NewCSRFromTriplets(rows, cols, is, js, vs)

	default:
		if rows == 0 || cols == 0 {
			return &mat.Dense{}, nil
		}
		sum := mat.NewDense(rows, cols, nil)
		for q, p := range parts {
			m := p.(mat.Matrix)
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					sum.Set(i, j, sum.At(i, j)+thetas[q]*m.At(i, j))
				}
			}
		}
		return sum, nil
	}
}

var _ Operator = (*Affine)(nil)
