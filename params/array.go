package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape is the extent of an array along each axis. The empty shape denotes
// a scalar.
type Shape []int

// Size returns the number of elements an array of this shape holds.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether s and other have identical extents.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Validate checks that no extent is negative.
func (s Shape) Validate() error {
	for _, d := range s {
		if d < 0 {
			return fmt.Errorf("%w: negative extent in %s", ErrInvalidShape, s)
		}
	}
	return nil
}

// Clone returns a copy of s.
func (s Shape) Clone() Shape {
	if s == nil {
		return Shape{}
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// String formats s like a tuple: (), (3,), (2, 3).
func (s Shape) String() string {
	switch len(s) {
	case 0:
		return "()"
	case 1:
		return "(" + strconv.Itoa(s[0]) + ",)"
	}
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Array is a row-major numeric array.
type Array struct {
	Shape Shape
	Data  []float64
}

// Scalar returns a zero-dimensional array holding v.
func Scalar(v float64) Array {
	return Array{Shape: Shape{}, Data: []float64{v}}
}

// Vec returns a one-dimensional array holding vs.
func Vec(vs ...float64) Array {
	data := make([]float64, len(vs))
	copy(data, vs)
	return Array{Shape: Shape{len(vs)}, Data: data}
}

// NewArray returns an array of the given shape backed by a copy of data.
func NewArray(shape Shape, data []float64) (Array, error) {
	if err := shape.Validate(); err != nil {
		return Array{}, err
	}
	if len(data) != shape.Size() {
		return Array{}, fmt.Errorf("%w: %d values for shape %s", ErrInvalidShape, len(data), shape)
	}
	out := make([]float64, len(data))
	copy(out, data)
	return Array{Shape: shape.Clone(), Data: out}, nil
}

// Zeros returns a zero-filled array of the given shape.
func Zeros(shape Shape) Array {
	return Array{Shape: shape.Clone(), Data: make([]float64, shape.Size())}
}

// Clone returns a deep copy of a.
func (a Array) Clone() Array {
	data := make([]float64, len(a.Data))
	copy(data, a.Data)
	return Array{Shape: a.Shape.Clone(), Data: data}
}

// Equal reports whether a and b have the same shape and bit-identical data.
func (a Array) Equal(b Array) bool {
	if !a.Shape.Equal(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if math.Float64bits(a.Data[i]) != math.Float64bits(b.Data[i]) {
			return false
		}
	}
	return true
}

// Item returns the single element of a size-one array.
func (a Array) Item() (float64, error) {
	if len(a.Data) != 1 {
		return 0, fmt.Errorf("%w: item of array with shape %s", ErrInvalidShape, a.Shape)
	}
	return a.Data[0], nil
}

func (a Array) String() string {
	if len(a.Shape) == 0 && len(a.Data) == 1 {
		return strconv.FormatFloat(a.Data[0], 'g', -1, 64)
	}
	parts := make([]string, len(a.Data))
	for i, v := range a.Data {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]" + a.Shape.String()
}

// broadcastTo expands a to target following numpy broadcasting: shapes are
// aligned on their trailing axes and every source extent must either match
// the target or be one.
func broadcastTo(a Array, target Shape) (Array, bool) {
	if a.Shape.Equal(target) {
		return a.Clone(), true
	}
	if len(a.Shape) > len(target) {
		return Array{}, false
	}
	pad := len(target) - len(a.Shape)
	src := make(Shape, len(target))
	for i := range src {
		if i < pad {
			src[i] = 1
		} else {
			src[i] = a.Shape[i-pad]
		}
		if src[i] != target[i] && src[i] != 1 {
			return Array{}, false
		}
	}

	strides := make([]int, len(src))
	stride := 1
	for i := len(src) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= src[i]
	}

	out := Zeros(target)
	idx := make([]int, len(target))
	for flat := range out.Data {
		off := 0
		for d := range idx {
			if src[d] != 1 {
				off += idx[d] * strides[d]
			}
		}
		out.Data[flat] = a.Data[off]
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < target[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out, true
}

// toArray converts an accepted raw leaf into an Array.
func toArray(v any) (Array, error) {
	switch x := v.(type) {
	case Array:
		if len(x.Data) != x.Shape.Size() {
			return Array{}, fmt.Errorf("%d values for shape %s", len(x.Data), x.Shape)
		}
		return x.Clone(), nil
	case *Array:
		if x == nil {
			return Array{}, fmt.Errorf("nil array")
		}
		return toArray(*x)
	case float64:
		return Scalar(x), nil
	case float32:
		return Scalar(float64(x)), nil
	case int:
		return Scalar(float64(x)), nil
	case int64:
		return Scalar(float64(x)), nil
	case []float64:
		return Vec(x...), nil
	case [][]float64:
		rows := len(x)
		cols := 0
		if rows > 0 {
			cols = len(x[0])
		}
		data := make([]float64, 0, rows*cols)
		for i, row := range x {
			if len(row) != cols {
				return Array{}, fmt.Errorf("ragged row %d: %d values, want %d", i, len(row), cols)
			}
			data = append(data, row...)
		}
		return Array{Shape: Shape{rows, cols}, Data: data}, nil
	default:
		return Array{}, fmt.Errorf("unsupported value type %T", v)
	}
}
