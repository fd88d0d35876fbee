package health

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/resilience"
)

func fixed(status Status) *CheckerFunc {
	return NewCheckerFunc(status.String(), func(context.Context) Result {
		return Result{Status: status}
	})
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
	if StatusHealthy.Worse(StatusDegraded) != StatusDegraded || StatusUnhealthy.Worse(StatusHealthy) != StatusUnhealthy {
		t.Error("Worse should return the more severe status")
	}
}

func TestResultHelpers(t *testing.T) {
	err := errors.New("boom")
	r := Unhealthy("down", err).WithDetails(map[string]any{"k": 1})
	if r.Status != StatusUnhealthy || r.Error != err || r.Details["k"] != 1 || r.Timestamp.IsZero() {
		t.Errorf("Unhealthy() = %+v", r)
	}
	if Healthy("ok").Status != StatusHealthy || Degraded("slow").Status != StatusDegraded {
		t.Error("Healthy/Degraded set the wrong status")
	}
}

func TestAggregator_RegisterKeepsOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register("b", fixed(StatusHealthy))
	agg.Register("a", fixed(StatusHealthy))
	agg.Register("b", fixed(StatusDegraded))

	names := agg.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Fatalf("Names() = %v, want [b a]", names)
	}

	agg.Unregister("b")
	agg.Unregister("missing")
	if names := agg.Names(); len(names) != 1 || names[0] != "a" {
		t.Errorf("Names() after Unregister = %v", names)
	}
}

func TestAggregator_Check(t *testing.T) {
	agg := NewAggregator()
	agg.Register("ok", fixed(StatusHealthy))

	r, err := agg.Check(context.Background(), "ok")
	if err != nil || r.Status != StatusHealthy {
		t.Fatalf("Check() = %+v, %v", r, err)
	}
	if _, err := agg.Check(context.Background(), "nope"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(nope) error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_RunReportsWorstStatus(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		agg := NewAggregator(AggregatorConfig{Sequential: sequential})
		if r := agg.Run(context.Background()); r.Status != StatusHealthy || len(r.Results) != 0 {
			t.Errorf("empty Run() = %+v", r)
		}

		agg.Register("ok", fixed(StatusHealthy))
		agg.Register("slow", fixed(StatusDegraded))
		report := agg.Run(context.Background())
		if report.Status != StatusDegraded {
			t.Errorf("sequential=%v: Status = %v, want degraded", sequential, report.Status)
		}
		if len(report.Results) != 2 || report.Results["ok"].Timestamp.IsZero() {
			t.Errorf("sequential=%v: Results = %+v", sequential, report.Results)
		}

		agg.Register("down", fixed(StatusUnhealthy))
		if s := agg.Run(context.Background()).Status; s != StatusUnhealthy {
			t.Errorf("sequential=%v: Status = %v, want unhealthy", sequential, s)
		}
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register("stuck", NewCheckerFunc("stuck", func(context.Context) Result {
		time.Sleep(time.Second)
		return Healthy("late")
	}))

	r := agg.Run(context.Background()).Results["stuck"]
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("stuck check = %+v, want timeout", r)
	}
}

func TestAggregator_Checker(t *testing.T) {
	agg := NewAggregator()
	agg.Register("ok", fixed(StatusHealthy))
	agg.Register("slow", fixed(StatusDegraded))

	c := agg.Checker()
	if c.Name() != "aggregate" {
		t.Errorf("Name() = %q", c.Name())
	}
	r := c.Check(context.Background())
	if r.Status != StatusDegraded || r.Details["slow"] != "degraded" {
		t.Errorf("Check() = %+v", r)
	}
}

func TestMemoryChecker(t *testing.T) {
	c := NewMemoryChecker(MemoryCheckerConfig{WarningThreshold: 0.9, CriticalThreshold: 0.7})
	if c.config.CriticalThreshold <= c.config.WarningThreshold {
		t.Error("critical threshold should be raised above the warning threshold")
	}
	if c.Name() != "memory" {
		t.Errorf("Name() = %q", c.Name())
	}

	mem := cache.NewMemoryCache(cache.DefaultPolicy())
	tight := NewMemoryChecker(MemoryCheckerConfig{MaxAlloc: 1, Cache: mem})
	r := tight.Check(context.Background())
	if r.Status != StatusUnhealthy {
		t.Errorf("1 byte budget: Status = %v, want unhealthy", r.Status)
	}
	if r.Details["cache_entries"] != 0 {
		t.Errorf("cache_entries = %v, want 0", r.Details["cache_entries"])
	}

	roomy := NewMemoryChecker(MemoryCheckerConfig{MaxAlloc: 1 << 50})
	if s := roomy.Check(context.Background()).Status; s != StatusHealthy {
		t.Errorf("huge budget: Status = %v, want healthy", s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if s := roomy.Check(ctx).Status; s != StatusUnhealthy {
		t.Errorf("canceled: Status = %v, want unhealthy", s)
	}
}

func TestCacheChecker_Memory(t *testing.T) {
	mem := cache.NewMemoryCache(cache.DefaultPolicy())
	c := NewCacheChecker("solutions", mem)

	r := c.Check(context.Background())
	if r.Status != StatusHealthy {
		t.Fatalf("Check() = %+v", r)
	}
	if mem.Len() != 0 {
		t.Errorf("sentinel entry left behind: %d entries", mem.Len())
	}
}

// forgetful accepts every write and never returns it.
type forgetful struct{ cache.NoCache }

func TestCacheChecker_Failures(t *testing.T) {
	r := NewCacheChecker("lossy", forgetful{}).Check(context.Background())
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckFailed) {
		t.Errorf("lossy cache: %+v, want unhealthy with ErrCheckFailed", r)
	}
	if r := NewCacheChecker("nil", nil).Check(context.Background()); !errors.Is(r.Error, cache.ErrNilCache) {
		t.Errorf("nil cache: Error = %v", r.Error)
	}
}

func TestCacheChecker_CachingDisabled(t *testing.T) {
	for _, c := range []cache.Cache{cache.NoCache{}, &cache.NoCache{}} {
		if r := NewCacheChecker("none", c).Check(context.Background()); r.Status != StatusHealthy {
			t.Errorf("%T: Status = %v, want healthy", c, r.Status)
		}
	}
}

func TestCacheChecker_Disk(t *testing.T) {
	disk, err := cache.OpenDiskCache(cache.DiskConfig{
		Path:    filepath.Join(t.TempDir(), "health.db"),
		Breaker: resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}
	c := NewCacheChecker("disk", disk)

	if r := c.Check(context.Background()); r.Status != StatusHealthy {
		t.Fatalf("open disk: %+v", r)
	}
	if n, _ := disk.Len(); n != 0 {
		t.Errorf("sentinel entry left behind: %d entries", n)
	}

	if err := disk.Close(); err != nil {
		t.Fatal(err)
	}
	if r := c.Check(context.Background()); r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckFailed) {
		t.Errorf("closed disk: %+v, want unhealthy", r)
	}
	if r := c.Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("tripped breaker: %+v, want degraded", r)
	}
}
