package linalg

import (
	"gonum.org/v1/gonum/mat"
)

// Storage identifies how an assembled array is represented.
type Storage uint8

const (
	// StorageUnknown is the zero value and never describes a valid result.
	StorageUnknown Storage = iota
	// StorageDense is a *mat.Dense matrix.
	StorageDense
	// StorageSparse is a *CSR matrix.
	StorageSparse
	// StorageVector is a *mat.VecDense vector.
	StorageVector
	// StorageScalar is a float64.
	StorageScalar
)

// String returns the string representation of the storage class.
func (s Storage) String() string {
	switch s {
	case StorageDense:
		return "dense"
	case StorageSparse:
		return "sparse"
	case StorageVector:
		return "vector"
	case StorageScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// StorageOf reports the storage class of v.
func StorageOf(v any) Storage {
	switch v.(type) {
	case *mat.Dense:
		return StorageDense
	case *CSR:
		return StorageSparse
	case *mat.VecDense:
		return StorageVector
	case float64:
		return StorageScalar
	default:
		return StorageUnknown
	}
}

// IsSparse reports whether m is stored sparsely.
func IsSparse(m mat.Matrix) bool {
	_, ok := m.(*CSR)
	return ok
}

// Dims returns the extents of an assembled result. Vectors are reported as
// column vectors and scalars as 1x1.
func Dims(v any) (rows, cols int) {
	switch x := v.(type) {
	case *mat.VecDense:
		return x.Len(), 1
	case mat.Matrix:
		return x.Dims()
	case float64:
		return 1, 1
	default:
		return 0, 0
	}
}

// NewVector returns a vector backed by a copy of data. Unlike
// mat.NewVecDense it accepts empty input.
func NewVector(data []float64) *mat.VecDense {
	if len(data) == 0 {
		return &mat.VecDense{}
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	return mat.NewVecDense(len(cp), cp)
}

// NewDense returns a rows x cols matrix backed by a copy of data. Empty
// shapes produce the empty matrix.
func NewDense(rows, cols int, data []float64) *mat.Dense {
	if rows == 0 || cols == 0 {
		return &mat.Dense{}
	}
	cp := make([]float64, rows*cols)
	copy(cp, data)
	return mat.NewDense(rows, cols, cp)
}

// VectorData returns a copy of the elements of v.
func VectorData(v mat.Vector) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// MatrixData returns the elements of m in row-major order.
func MatrixData(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}
