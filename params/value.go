package params

import (
	"sort"
	"strings"
)

// Raw is unvalidated parameter input keyed by component name.
//
// Accepted leaf values are float64, float32, int, int64, []float64,
// [][]float64, Array and *Array.
type Raw map[string]any

// Value is a parameter assignment validated against a Type. The zero Value
// is the empty parameter.
//
// Values are immutable: arrays are copied on the way in and on the way out.
type Value struct {
	typ    *Type
	arrays map[string]Array
}

// Type returns the schema v was validated against.
func (v Value) Type() *Type { return v.typ }

// Len returns the number of components in v.
func (v Value) Len() int { return len(v.arrays) }

// Names returns the component names of v in sorted order.
func (v Value) Names() []string {
	names := make([]string, 0, len(v.arrays))
	for name := range v.arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of the array assigned to name.
func (v Value) Get(name string) (Array, bool) {
	a, ok := v.arrays[name]
	if !ok {
		return Array{}, false
	}
	return a.Clone(), true
}

// Scalar returns the single element of component name.
func (v Value) Scalar(name string) (float64, error) {
	a, ok := v.arrays[name]
	if !ok {
		return 0, validationErrorf(name, "component not present")
	}
	x, err := a.Item()
	if err != nil {
		return 0, validationErrorf(name, "not a scalar: shape %s", a.Shape)
	}
	return x, nil
}

// AsRaw converts v back into raw input. Parsing the result against v's type
// yields a Value equal to v.
func (v Value) AsRaw() Raw {
	raw := make(Raw, len(v.arrays))
	for name, a := range v.arrays {
		raw[name] = a.Clone()
	}
	return raw
}

// Equal reports whether v and other hold bit-identical arrays under the same
// component names.
func (v Value) Equal(other Value) bool {
	if len(v.arrays) != len(other.arrays) {
		return false
	}
	for name, a := range v.arrays {
		b, ok := other.arrays[name]
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	names := v.Names()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + v.arrays[name].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Parse validates raw against t and returns the canonical Value.
//
// Scalars and lower-rank arrays are broadcast to the declared shape. A
// missing component takes its default if the type declares one and is an
// error otherwise. An empty type accepts a nil or empty raw. raw is never
// modified.
func (t *Type) Parse(raw Raw) (Value, error) {
	extra := make([]string, 0)
	for name := range raw {
		if !t.Has(name) {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return Value{}, validationErrorf(extra[0], "unknown component, schema is %s", t)
	}

	arrays := make(map[string]Array, t.Len())
	for _, name := range t.Names() {
		c := t.components[name]
		in, present := raw[name]
		if !present || in == nil {
			if c.Default == nil {
				return Value{}, validationErrorf(name, "missing value for shape %s and no default", c.Shape)
			}
			arrays[name] = c.Default.Clone()
			continue
		}
		a, err := toArray(in)
		if err != nil {
			return Value{}, validationErrorf(name, "%v", err)
		}
		b, ok := broadcastTo(a, c.Shape)
		if !ok {
			return Value{}, validationErrorf(name, "shape %s is not compatible with %s", a.Shape, c.Shape)
		}
		arrays[name] = b
	}
	return Value{typ: t, arrays: arrays}, nil
}

// Validate checks that v conforms to t exactly.
func (t *Type) Validate(v Value) error {
	for _, name := range v.Names() {
		if !t.Has(name) {
			return validationErrorf(name, "unknown component, schema is %s", t)
		}
	}
	for _, name := range t.Names() {
		a, ok := v.arrays[name]
		if !ok {
			return validationErrorf(name, "missing value")
		}
		if !a.Shape.Equal(t.components[name].Shape) {
			return validationErrorf(name, "shape %s, want %s", a.Shape, t.components[name].Shape)
		}
	}
	return nil
}
