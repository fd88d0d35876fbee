package resilience

import (
	"context"
	"errors"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrInvalidConfig is returned by CircuitBreakerConfig.Validate.
	ErrInvalidConfig = errors.New("resilience: invalid circuit breaker config")
)

// IsContextError reports whether err stems from a cancelled or expired
// context. Such errors say nothing about the health of the guarded resource.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
