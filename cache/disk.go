package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/observe"
	"github.com/jonwraymond/paramsolve/resilience"
)

// DefaultBucket is the bbolt bucket DiskCache stores entries in.
const DefaultBucket = "paramsolve"

// Disk cache errors.
var (
	ErrDiskClosed  = errors.New("cache: disk cache is closed")
	ErrCorruptData = errors.New("cache: corrupt stored entry")
)

// DiskConfig configures a DiskCache.
type DiskConfig struct {
	// Path is the database file. Required.
	Path string

	// Bucket names the bbolt bucket. Default: DefaultBucket
	Bucket string

	// Timeout bounds how long Open waits for the file lock.
	// Default: 1 second
	Timeout time.Duration

	// Breaker guards database access. After repeated I/O failures the
	// cache behaves as NoCache until the breaker half-opens.
	Breaker resilience.CircuitBreakerConfig

	// Logger receives warnings about failed reads and writes.
	Logger observe.Logger
}

// DiskCache persists entries in a bbolt database.
//
// Values are stored as their linalg storage class followed by the
// linalg.Encode payload, so a result decodes into the same storage class it
// was stored with. Only storage classes supported by linalg.Encode can be
// stored.
type DiskCache struct {
	db      *bolt.DB
	bucket  []byte
	breaker *resilience.CircuitBreaker
	logger  observe.Logger
}

// OpenDiskCache opens or creates the database at cfg.Path.
func OpenDiskCache(cfg DiskConfig) (*DiskCache, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("cache: disk cache path is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", cfg.Path, err)
	}

	bucket := []byte(cfg.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create bucket %q: %w", cfg.Bucket, err)
	}

	return &DiskCache{
		db:      db,
		bucket:  bucket,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
		logger:  cfg.Logger,
	}, nil
}

// Get reads and decodes the entry for key. Read and decode failures are
// logged and reported as a miss.
func (c *DiskCache) Get(ctx context.Context, key Key) (Entry, bool) {
	var raw []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return c.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(c.bucket)
			if b == nil {
				return ErrDiskClosed
			}
			if v := b.Get([]byte(key.String())); v != nil {
				raw = append([]byte(nil), v...)
			}
			return nil
		})
	})
	if err != nil {
		c.warn(ctx, "disk cache read failed", key, err)
		return Entry{}, false
	}
	if raw == nil {
		return Entry{}, false
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		c.warn(ctx, "disk cache decode failed", key, err)
		return Entry{}, false
	}
	return entry, true
}

// Set encodes and writes entry.
func (c *DiskCache) Set(ctx context.Context, key Key, entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return c.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(c.bucket)
			if b == nil {
				return ErrDiskClosed
			}
			return b.Put([]byte(key.String()), data)
		})
	})
}

// Delete removes the entry for key. Idempotent - no error on miss.
func (c *DiskCache) Delete(ctx context.Context, key Key) error {
	return c.breaker.Execute(ctx, func(context.Context) error {
		return c.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(c.bucket)
			if b == nil {
				return ErrDiskClosed
			}
			return b.Delete([]byte(key.String()))
		})
	})
}

// Len returns the number of stored entries.
func (c *DiskCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return ErrDiskClosed
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// Ping verifies the database can be read by opening a read transaction.
func (c *DiskCache) Ping(ctx context.Context) error {
	return c.breaker.Execute(ctx, func(context.Context) error {
		return c.db.View(func(tx *bolt.Tx) error {
			if tx.Bucket(c.bucket) == nil {
				return ErrDiskClosed
			}
			return nil
		})
	})
}

// BreakerState returns the state of the circuit breaker guarding c.
func (c *DiskCache) BreakerState() resilience.State {
	return c.breaker.State()
}

// Path returns the database file path.
func (c *DiskCache) Path() string { return c.db.Path() }

// Close closes the database.
func (c *DiskCache) Close() error {
	return c.db.Close()
}

func (c *DiskCache) warn(ctx context.Context, msg string, key Key, err error) {
	c.logger.Warn(ctx, msg,
		observe.F("key", key.String()),
		observe.F("error", err),
		observe.F("breaker", c.breaker.State().String()))
}

func encodeEntry(e Entry) ([]byte, error) {
	payload, storage, err := linalg.Encode(e.Value)
	if err != nil {
		return nil, fmt.Errorf("cache: encode entry: %w", err)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(storage))
	return append(out, payload...), nil
}

func decodeEntry(raw []byte) (Entry, error) {
	if len(raw) < 1 {
		return Entry{}, ErrCorruptData
	}
	storage := linalg.Storage(raw[0])
	v, err := linalg.Decode(raw[1:], storage)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	return Entry{Value: v, Storage: storage}, nil
}

var _ Cache = (*DiskCache)(nil)
