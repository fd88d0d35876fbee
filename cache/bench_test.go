package cache

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/observe"
	"github.com/jonwraymond/paramsolve/params"
)

// BenchmarkFingerprint_Dense measures fingerprinting a dense matrix.
func BenchmarkFingerprint_Dense(b *testing.B) {
	m := mat.NewDense(64, 64, nil)
	for i := 0; i < 64; i++ {
		m.Set(i, i, float64(i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Fingerprint(m)
	}
}

// BenchmarkFingerprint_ParameterValue measures fingerprinting a parsed value.
func BenchmarkFingerprint_ParameterValue(b *testing.B) {
	typ := params.MustType(map[string]params.Shape{"diffusion": {4}, "source": {}})
	mu, err := typ.Parse(params.Raw{"diffusion": []float64{1, 2, 3, 4}, "source": 1.0})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Fingerprint(mu)
	}
}

// BenchmarkMemo_GetOrCompute_Hit measures a memo lookup served from memory.
func BenchmarkMemo_GetOrCompute_Hit(b *testing.B) {
	m := NewMemo(nil, DefaultPolicy())
	ctx := context.Background()
	key, err := NewDefaultKeyer().Key("op", "assemble", 1.0)
	if err != nil {
		b.Fatal(err)
	}
	compute := func(context.Context) (any, error) { return 1.0, nil }
	meta := observe.Meta{Kind: "assemble"}
	_, _ = m.GetOrCompute(ctx, key, meta, compute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.GetOrCompute(ctx, key, meta, compute)
	}
}

// BenchmarkMemoryCache_Get_Miss measures cache miss performance.
func BenchmarkMemoryCache_Get_Miss(b *testing.B) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()
	key := Key{Identity: MustFingerprint("missing"), Call: MustFingerprint("call")}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, key)
	}
}

// BenchmarkDiskCache_Get_Hit measures decoding a stored vector.
func BenchmarkDiskCache_Get_Hit(b *testing.B) {
	d, err := OpenDiskCache(DiskConfig{Path: b.TempDir() + "/bench.db"})
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()
	ctx := context.Background()
	key := Key{Identity: MustFingerprint("heat"), Call: MustFingerprint("solve")}
	if err := d.Set(ctx, key, NewEntry(mat.NewVecDense(128, nil))); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := d.Get(ctx, key); !ok {
			b.Fatal("miss")
		}
	}
}
