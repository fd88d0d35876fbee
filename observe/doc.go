// Package observe provides logging, metrics and tracing for assembly and
// solve computations.
//
// It is a pure instrumentation library. Memoized computations in the cache
// package are wrapped by a Middleware built from an Observer; everything
// degrades to no-ops when telemetry is disabled.
package observe
