package cache

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("cache: invalid policy")

// Policy configures caching behavior.
type Policy struct {
	// Enabled turns memoization on. When false every call computes.
	Enabled bool `yaml:"enabled"`

	// MaxEntries bounds the number of entries a MemoryCache keeps, evicting
	// the least recently used. Zero means unbounded.
	MaxEntries int `yaml:"max_entries"`
}

// DefaultPolicy returns the default caching policy: enabled and unbounded.
func DefaultPolicy() Policy {
	return Policy{Enabled: true}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.Enabled
}

// Validate validates the policy.
func (p Policy) Validate() error {
	if p.MaxEntries < 0 {
		return fmt.Errorf("%w: max entries must be >= 0, got %d", ErrInvalidPolicy, p.MaxEntries)
	}
	return nil
}
