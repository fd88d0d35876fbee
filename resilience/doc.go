// Package resilience guards access to persistent storage with a circuit
// breaker.
//
// A DiskCache routes every read and write through a CircuitBreaker. After
// MaxFailures consecutive I/O failures the breaker opens and the cache
// answers every lookup as a miss without touching the file, so a broken
// disk degrades to recomputation instead of a stalled solve. After
// ResetTimeout one trial request is let through (half-open); its success
// closes the circuit again.
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return db.View(read)
//	})
//
// Operations are never retried.
package resilience
