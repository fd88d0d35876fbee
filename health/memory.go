package health

import (
	"context"
	"fmt"
	"runtime"
)

// Sizer is a cache that can report how many entries it holds, such as
// cache.MemoryCache.
type Sizer interface {
	Len() int
}

// MemoryCheckerConfig configures the memory health checker.
type MemoryCheckerConfig struct {
	// WarningThreshold is the fraction of MaxAlloc that triggers degraded
	// status. Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of MaxAlloc that triggers unhealthy
	// status. Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the heap budget in bytes. Zero uses the memory obtained
	// from the OS.
	MaxAlloc uint64

	// Cache, when set, has its entry count reported so a growing in-memory
	// solution cache can be told apart from other allocations.
	Cache Sizer
}

// MemoryChecker checks heap usage against a budget.
type MemoryChecker struct {
	config MemoryCheckerConfig
}

// NewMemoryChecker creates a new memory health checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = min(config.WarningThreshold+0.1, 0.99)
	}
	return &MemoryChecker{config: config}
}

func (m *MemoryChecker) Name() string { return "memory" }

// Check compares the live heap with the budget.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	maxAlloc := m.config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = stats.Sys
	}
	details := map[string]any{
		"alloc_bytes": stats.HeapAlloc,
		"max_alloc":   maxAlloc,
		"num_gc":      stats.NumGC,
		"goroutines":  runtime.NumGoroutine(),
	}
	if m.config.Cache != nil {
		details["cache_entries"] = m.config.Cache.Len()
	}
	if maxAlloc == 0 {
		return Healthy("memory stats unavailable").WithDetails(details)
	}

	usage := float64(stats.HeapAlloc) / float64(maxAlloc)
	details["usage_percent"] = usage * 100
	switch {
	case usage >= m.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("memory usage critical: %.1f%%", usage*100), ErrCheckFailed).WithDetails(details)
	case usage >= m.config.WarningThreshold:
		return Degraded(fmt.Sprintf("memory usage high: %.1f%%", usage*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("memory usage normal: %.1f%%", usage*100)).WithDetails(details)
	}
}
