package cache_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/cache"
	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/observe"
)

func ExampleMemo_GetOrCompute() {
	memo := cache.NewMemo(nil, cache.DefaultPolicy())
	ctx := context.Background()

	key, err := cache.NewDefaultKeyer().Key("stiffness", "assemble", 2.0)
	if err != nil {
		fmt.Println(err)
		return
	}
	compute := func(context.Context) (any, error) {
		fmt.Println("computing")
		return mat.NewVecDense(2, []float64{2, 4}), nil
	}

	// The second call is served from the cache
	for i := 0; i < 2; i++ {
		v, _ := memo.GetOrCompute(ctx, key, observe.Meta{Kind: "assemble"}, compute)
		fmt.Println(linalg.VectorData(v.(*mat.VecDense)))
	}
	fmt.Printf("%+v\n", memo.Stats())
	// Output:
	// computing
	// [2 4]
	// [2 4]
	// {Hits:1 Misses:1 Computations:1 StoreErrors:0}
}

func ExampleOpenDiskCache() {
	dir, err := os.MkdirTemp("", "paramsolve-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "solutions.db")
	ctx := context.Background()
	key := cache.Key{
		Identity: cache.MustFingerprint("heat"),
		Call:     cache.MustFingerprint([]any{"solve", 1.0}),
	}

	disk, err := cache.OpenDiskCache(cache.DiskConfig{Path: path})
	if err != nil {
		fmt.Println(err)
		return
	}
	_ = disk.Set(ctx, key, cache.NewEntry(mat.NewVecDense(3, []float64{0.5, 1, 0.5})))
	_ = disk.Close()

	// Entries survive a reopen with their storage class
	reopened, err := cache.OpenDiskCache(cache.DiskConfig{Path: path})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer reopened.Close()

	e, ok := reopened.Get(ctx, key)
	fmt.Println(ok, e.Storage)
	fmt.Println(linalg.VectorData(e.Value.(*mat.VecDense)))
	// Output:
	// true vector
	// [0.5 1 0.5]
}

func ExampleFingerprint() {
	a := cache.MustFingerprint(map[string]any{"diffusion": 1.0, "source": 2.0})
	b := cache.MustFingerprint(map[string]any{"source": 2.0, "diffusion": 1.0})
	c := cache.MustFingerprint(map[string]any{"diffusion": 1.5, "source": 2.0})

	fmt.Println(a == b, a == c, a.Valid())
	// Output:
	// true false true
}
