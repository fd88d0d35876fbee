package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/paramsolve/linalg"
)

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
)

// Key addresses one memoized result: the identity of the computing object
// and the identity of the call (method and parameters).
type Key struct {
	Identity Identity
	Call     Identity
}

// String returns identity:call.
func (k Key) String() string {
	return string(k.Identity) + ":" + string(k.Call)
}

// Entry is a stored result together with its storage class.
type Entry struct {
	Value   any
	Storage linalg.Storage
}

// NewEntry wraps v, recording its storage class.
func NewEntry(v any) Entry {
	return Entry{Value: v, Storage: linalg.StorageOf(v)}
}

// Cache is the interface for result backends.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get never errors; backend failures are reported as a miss.
// - Ownership: a value returned by Get must not be modified by the caller.
type Cache interface {
	// Get retrieves a stored entry. Returns (Entry{}, false) on miss.
	Get(ctx context.Context, key Key) (Entry, bool)

	// Set stores an entry, replacing any previous entry for key.
	Set(ctx context.Context, key Key, entry Entry) error

	// Delete removes a stored entry. Idempotent - no error on miss.
	Delete(ctx context.Context, key Key) error
}

// ValidateKey checks that both parts of key are well-formed identities.
func ValidateKey(key Key) error {
	if !key.Identity.Valid() {
		return fmt.Errorf("%w: identity %q", ErrInvalidKey, key.Identity)
	}
	if !key.Call.Valid() {
		return fmt.Errorf("%w: call %q", ErrInvalidKey, key.Call)
	}
	return nil
}

// NoCache is a backend that stores nothing.
type NoCache struct{}

func (NoCache) Get(context.Context, Key) (Entry, bool) { return Entry{}, false }
func (NoCache) Set(context.Context, Key, Entry) error  { return nil }
func (NoCache) Delete(context.Context, Key) error      { return nil }

var _ Cache = NoCache{}
