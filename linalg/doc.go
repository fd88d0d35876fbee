// Package linalg holds the numeric storage classes and linear solvers used
// by operators and discretizations.
//
// Dense matrices and vectors are gonum types (*mat.Dense, *mat.VecDense).
// Sparse matrices are *CSR, a wrapper over github.com/james-bowman/sparse
// that implements mat.Matrix so it can be passed anywhere gonum expects a
// matrix. Iterative solves run on gonum.org/v1/exp/linsolve. The storage class of an assembled result
// drives solver dispatch and must survive a round trip through Encode and
// Decode unchanged.
package linalg
