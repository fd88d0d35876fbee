// Package operator defines parameter-dependent linear operators and their
// cached assembly.
//
// An Operator declares its extents, its parameter schema and a pure
// Assemble method producing a *mat.Dense, a *linalg.CSR or, for linear
// functionals, a *mat.VecDense. Concrete variants cover assembler
// functions of either storage class, constant matrices, affine
// combinations theta_1(mu) A_1 + ... + theta_Q(mu) A_Q and a 1-D
// finite-difference diffusion operator.
//
// Cached memoizes Assemble through a cache.Memo keyed by the operator's
// fingerprint and the parsed parameter value.
package operator
