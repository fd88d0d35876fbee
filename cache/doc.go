// Package cache memoizes expensive computations by the identity of the
// object that performs them and the parameters they are called with.
//
// Identities are SHA-256 fingerprints of a canonical binary encoding, so two
// objects in the same state share results and a mutated object gets a new
// identity. Results live in a Cache backend: MemoryCache keeps the computed
// object itself, DiskCache persists it in a bbolt file. Memo ties a backend
// to a computation and guarantees that each key is computed at most once,
// also under concurrent callers.
package cache
