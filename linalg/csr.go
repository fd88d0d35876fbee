package linalg

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// CSR is a compressed sparse row matrix backed by a sparse.CSR.
//
// Within a row every column index occurs at most once. CSR values are
// immutable once built. The zero value is the empty 0x0 matrix.
type CSR struct {
	rows, cols int
	m          *sparse.CSR // nil when either extent is zero
}

var _ mat.Matrix = (*CSR)(nil)

func wrapCSR(rows, cols int, m *sparse.CSR) *CSR {
	if rows == 0 || cols == 0 {
		m = nil
	}
	return &CSR{rows: rows, cols: cols, m: m}
}

// NewCSR builds a CSR matrix from its raw arrays. The slices are copied.
func NewCSR(rows, cols int, indptr, ind []int, data []float64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("%w: indptr has %d entries, want %d", ErrBadShape, len(indptr), rows+1)
	}
	if len(ind) != len(data) || indptr[0] != 0 || indptr[rows] != len(data) {
		return nil, fmt.Errorf("%w: inconsistent index arrays", ErrBadShape)
	}
	seen := make([]int, cols)
	for j := range seen {
		seen[j] = -1
	}
	for i := 0; i < rows; i++ {
		lo, hi := indptr[i], indptr[i+1]
		if lo > hi {
			return nil, fmt.Errorf("%w: indptr decreases at row %d", ErrBadShape, i)
		}
		for k := lo; k < hi; k++ {
			j := ind[k]
			if j < 0 || j >= cols {
				return nil, fmt.Errorf("%w: column %d in row %d", ErrOutOfRange, j, i)
			}
			if seen[j] == i {
				return nil, fmt.Errorf("%w: column %d repeated in row %d", ErrBadShape, j, i)
			}
			seen[j] = i
		}
	}
	if rows == 0 || cols == 0 {
		return wrapCSR(rows, cols, nil), nil
	}
	m := sparse.NewCSR(rows, cols,
		append([]int(nil), indptr...),
		append([]int(nil), ind...),
		append([]float64(nil), data...))
	return wrapCSR(rows, cols, m), nil
}

// NewCSRFromTriplets builds a CSR matrix from coordinate triplets.
// Duplicate entries are summed.
func NewCSRFromTriplets(rows, cols int, is, js []int, vs []float64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	if len(is) != len(js) || len(js) != len(vs) {
		return nil, fmt.Errorf("%w: triplet arrays differ in length", ErrBadShape)
	}
	for k := range is {
		if i, j := is[k], js[k]; i < 0 || i >= rows || j < 0 || j >= cols {
			return nil, fmt.Errorf("%w: (%d, %d) in %dx%d", ErrOutOfRange, i, j, rows, cols)
		}
	}
	if rows == 0 || cols == 0 {
		return wrapCSR(rows, cols, nil), nil
	}

	// Row-major triplet order keeps the compressed layout, and with it the
	// fingerprint, independent of the order of assembly.
	t := triplets{
		is: append([]int(nil), is...),
		js: append([]int(nil), js...),
		vs: append([]float64(nil), vs...),
	}
	sort.Stable(t)
	t = t.summed()
	coo := sparse.NewCOO(rows, cols, t.is, t.js, t.vs)
	return wrapCSR(rows, cols, coo.ToCSR()), nil
}

type triplets struct {
	is, js []int
	vs     []float64
}

func (t triplets) Len() int { return len(t.is) }
func (t triplets) Less(a, b int) bool {
	if t.is[a] != t.is[b] {
		return t.is[a] < t.is[b]
	}
	return t.js[a] < t.js[b]
}
func (t triplets) Swap(a, b int) {
	t.is[a], t.is[b] = t.is[b], t.is[a]
	t.js[a], t.js[b] = t.js[b], t.js[a]
	t.vs[a], t.vs[b] = t.vs[b], t.vs[a]
}

// summed folds adjacent duplicates of a sorted triplet list. COO.ToCSR
// misses a duplicate of the first entry in a row, so it never sees one.
func (t triplets) summed() triplets {
	n := 0
	for k := range t.is {
		if n > 0 && t.is[k] == t.is[n-1] && t.js[k] == t.js[n-1] {
			t.vs[n-1] += t.vs[k]
			continue
		}
		t.is[n], t.js[n], t.vs[n] = t.is[k], t.js[k], t.vs[k]
		n++
	}
	return triplets{is: t.is[:n], js: t.js[:n], vs: t.vs[:n]}
}

// CSRFromDense converts m into CSR form, dropping exact zeros.
func CSRFromDense(m mat.Matrix) *CSR {
	r, c := m.Dims()
	var is, js []int
	var vs []float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				is, js, vs = append(is, i), append(js, j), append(vs, v)
			}
		}
	}
	out, err := NewCSRFromTriplets(r, c, is, js, vs)
	if err != nil {
		panic(err)
	}
	return out
}

// Dims returns the number of rows and columns.
func (c *CSR) Dims() (r, cols int) { return c.rows, c.cols }

// At returns the element at row i, column j.
func (c *CSR) At(i, j int) float64 {
	if i < 0 || i >= c.rows || j < 0 || j >= c.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	return c.m.At(i, j)
}

// T returns the implicit transpose of c.
func (c *CSR) T() mat.Matrix { return mat.Transpose{Matrix: c} }

// NNZ returns the number of stored entries.
func (c *CSR) NNZ() int {
	if c.m == nil {
		return 0
	}
	return c.m.NNZ()
}

// DoNonZero calls fn for every stored entry in row-major order.
func (c *CSR) DoNonZero(fn func(i, j int, v float64)) {
	if c.m == nil {
		return
	}
	c.m.DoNonZero(fn)
}

// MulVecTo computes dst = c*x, or dst = cᵀ*x when trans is true.
func (c *CSR) MulVecTo(dst *mat.VecDense, trans bool, x mat.Vector) {
	n, m := c.rows, c.cols
	if trans {
		n, m = m, n
	}
	if x.Len() != m {
		panic(mat.ErrShape)
	}
	if n == 0 {
		return
	}
	if dst.IsEmpty() {
		dst.ReuseAsVec(n)
	} else if dst.Len() != n {
		panic(mat.ErrShape)
	}
	xs := make([]float64, m)
	for k := range xs {
		xs[k] = x.AtVec(k)
	}
	dst.Zero()
	if c.m == nil {
		return
	}
	raw := dst.RawVector()
	if raw.Inc == 1 {
		c.m.MulVecTo(raw.Data[:n], trans, xs)
		return
	}
	out := make([]float64, n)
	c.m.MulVecTo(out, trans, xs)
	for k, v := range out {
		dst.SetVec(k, v)
	}
}

// ToDense returns the dense equivalent of c.
func (c *CSR) ToDense() *mat.Dense {
	if c.m == nil {
		return &mat.Dense{}
	}
	return c.m.ToDense()
}

// Raw returns copies of the row pointer, column index and value arrays.
func (c *CSR) Raw() (indptr, ind []int, data []float64) {
	indptr = make([]int, c.rows+1)
	c.DoNonZero(func(i, j int, v float64) {
		indptr[i+1]++
		ind = append(ind, j)
		data = append(data, v)
	})
	for i := 0; i < c.rows; i++ {
		indptr[i+1] += indptr[i]
	}
	return indptr, ind, data
}

// Diagonal returns the main diagonal of c.
func (c *CSR) Diagonal() []float64 {
	n := min(c.rows, c.cols)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = c.At(i, i)
	}
	return out
}
