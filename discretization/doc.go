// Package discretization composes operators into linear systems and solves
// them per parameter value.
//
// A StationaryLinear holds a system operator A and a right-hand side
// functional f and solves A(mu) u = f(mu). Its parameter type is the merge
// of the operators' types. Each solve assembles both operators through
// their caches, picks a solver by the storage class of A and memoizes the
// solution keyed by the discretization's fingerprint and mu.
package discretization
