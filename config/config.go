// Package config loads paramsolve settings from YAML.
//
// A file configures the iterative solver, the cache backend shared by
// discretizations and the observe stack:
//
//	solver:
//	  bicg_tol: 1e-10
//	  bicg_max_iter: 0
//	cache:
//	  backend: disk
//	  path: ${PARAMSOLVE_CACHE_DIR}/solutions.db
//	  breaker:
//	    max_failures: 5
//	    reset_timeout: 30s
//	observe:
//	  service_name: heat-study
//	  logging:
//	    enabled: true
//	    level: info
//
// Unset fields keep the values of Default. The cache path is expanded with
// secret.ExpandEnvStrict, so a referenced variable that is not set is an
// error.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/discretization"
	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/observe"
	"github.com/jonwraymond/paramsolve/resilience"
	"github.com/jonwraymond/paramsolve/secret"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendNone   = "none"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root of a configuration file.
type Config struct {
	Solver  SolverConfig   `yaml:"solver"`
	Cache   CacheConfig    `yaml:"cache"`
	Observe observe.Config `yaml:"observe"`
}

// SolverConfig configures BiCG, the solver used for sparse systems.
type SolverConfig struct {
	// BiCGTol is the relative residual tolerance.
	// Default: linalg.DefaultBiCGTol
	BiCGTol float64 `yaml:"bicg_tol"`

	// BiCGMaxIter caps the iterations. Zero means ten times the system
	// dimension.
	BiCGMaxIter int `yaml:"bicg_max_iter"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is memory, disk or none. Default: memory
	Backend string `yaml:"backend"`

	// Path is the database file of the disk backend.
	Path string `yaml:"path"`

	// MaxEntries bounds the memory backend. Zero means unbounded.
	MaxEntries int `yaml:"max_entries"`

	// Timeout bounds how long the disk backend waits for its file lock.
	Timeout time.Duration `yaml:"timeout"`

	// Breaker guards the disk backend.
	Breaker resilience.CircuitBreakerConfig `yaml:"breaker"`
}

// Default returns the configuration used for absent fields.
func Default() Config {
	return Config{
		Solver:  SolverConfig{BiCGTol: linalg.DefaultBiCGTol},
		Cache:   CacheConfig{Backend: BackendMemory},
		Observe: observe.DefaultConfig(),
	}
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over Default, expands the cache path and validates
// the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Cache.Path != "" {
		path, err := secret.ExpandEnvStrict(cfg.Cache.Path)
		if err != nil {
			return Config{}, fmt.Errorf("config: cache path: %w", err)
		}
		cfg.Cache.Path = path
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Solver.BiCGTol < 0 {
		return fmt.Errorf("%w: solver.bicg_tol must be >= 0, got %g", ErrInvalidConfig, c.Solver.BiCGTol)
	}
	if c.Solver.BiCGMaxIter < 0 {
		return fmt.Errorf("%w: solver.bicg_max_iter must be >= 0, got %d", ErrInvalidConfig, c.Solver.BiCGMaxIter)
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendNone:
	case BackendDisk:
		if c.Cache.Path == "" {
			return fmt.Errorf("%w: cache.path is required for the disk backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache.backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("%w: cache.max_entries must be >= 0, got %d", ErrInvalidConfig, c.Cache.MaxEntries)
	}
	if c.Cache.Timeout < 0 {
		return fmt.Errorf("%w: cache.timeout must be >= 0, got %s", ErrInvalidConfig, c.Cache.Timeout)
	}
	if err := c.Cache.Breaker.Validate(); err != nil {
		return fmt.Errorf("%w: cache.breaker: %w", ErrInvalidConfig, err)
	}

	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Policy is the memoization policy implied by the cache section.
func (c *Config) Policy() cache.Policy {
	if c.Cache.Backend == BackendNone {
		return cache.NoCachePolicy()
	}
	return cache.Policy{Enabled: true, MaxEntries: c.Cache.MaxEntries}
}

// NewCache opens the configured backend. The caller closes a disk backend
// through the io.Closer it implements.
func NewCache(ctx context.Context, cfg Config, logger observe.Logger) (cache.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch cfg.Cache.Backend {
	case BackendNone:
		return cache.NoCache{}, nil
	case BackendDisk:
		disk, err := cache.OpenDiskCache(cache.DiskConfig{
			Path:    cfg.Cache.Path,
			Timeout: cfg.Cache.Timeout,
			Breaker: cfg.Cache.Breaker,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("config: open disk cache: %w", err)
		}
		return disk, nil
	case BackendMemory, "":
		return cache.NewMemoryCache(cfg.Policy()), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache.backend %q", ErrInvalidConfig, cfg.Cache.Backend)
	}
}

// SolverDefaults is the storage-class dispatch configured by the solver
// section.
func SolverDefaults(cfg Config) linalg.Dispatch {
	return linalg.NewDispatch(cfg.Solver.BiCGTol, cfg.Solver.BiCGMaxIter)
}

// NewObserver builds the observe stack configured by the observe section.
// The caller shuts it down.
func NewObserver(ctx context.Context, cfg Config) (observe.Observer, error) {
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("config: observer: %w", err)
	}
	return obs, nil
}

// Options returns the discretization options for cfg storing into c and
// reporting to obs. A nil obs leaves telemetry off.
func Options(cfg Config, c cache.Cache, obs observe.Observer) []discretization.Option {
	opts := []discretization.Option{
		discretization.WithSolverConfig(cfg.Solver.BiCGTol, cfg.Solver.BiCGMaxIter),
		discretization.WithCache(c, cfg.Policy()),
	}
	if obs != nil {
		opts = append(opts, discretization.WithObserver(obs))
	}
	return opts
}
