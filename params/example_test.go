package params_test

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/paramsolve/params"
)

func ExampleMerge() {
	stiffness := params.MustType(map[string]params.Shape{"diffusion": {3}})
	load := params.MustType(map[string]params.Shape{"diffusion": {3}, "source": {}})

	// Equal components merge into one
	merged, err := params.Merge(stiffness, load, nil, "load")
	fmt.Println(merged, err)

	// Different shapes under one name conflict
	coarse := params.MustType(map[string]params.Shape{"diffusion": {2}})
	_, err = params.Merge(stiffness, coarse, nil, "coarse")
	fmt.Println(errors.Is(err, params.ErrSchemaConflict))

	// A rename separates them
	renamed, err := params.Merge(stiffness, coarse, map[string]string{"diffusion": "k"}, "coarse")
	fmt.Println(renamed, err)
	// Output:
	// {diffusion: (3,), source: ()} <nil>
	// true
	// {diffusion: (3,), k: (2,)} <nil>
}

func ExampleType_Parse() {
	typ := params.MustType(map[string]params.Shape{"s": {}, "v": {3}})

	// Scalars broadcast to the declared shape
	mu, err := typ.Parse(params.Raw{"s": 2, "v": 1.0})
	fmt.Println(mu, err)

	_, err = typ.Parse(params.Raw{"s": 2})
	fmt.Println(errors.Is(err, params.ErrParameterValidation))
	// Output:
	// {s: 2, v: [1 1 1](3,)} <nil>
	// true
}
