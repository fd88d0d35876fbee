package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math"
	"reflect"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/jonwraymond/paramsolve/linalg"
	"github.com/jonwraymond/paramsolve/params"
)

// IdentityLength is the number of hex characters in an Identity.
const IdentityLength = 32

// maxDepth bounds recursion through nested state.
const maxDepth = 64

// ErrUnfingerprintable is returned for values that have no canonical
// encoding, such as functions and channels.
var ErrUnfingerprintable = errors.New("cache: value cannot be fingerprinted")

// Identity is a content fingerprint: 32 hex characters of SHA-256.
type Identity string

// Valid reports whether id has the form produced by Fingerprint.
func (id Identity) Valid() bool {
	if len(id) != IdentityLength {
		return false
	}
	_, err := hex.DecodeString(string(id))
	return err == nil
}

// String returns id.
func (id Identity) String() string { return string(id) }

// Stateful is implemented by objects whose cache identity is defined by an
// explicit list of attributes.
//
// Contract:
//   - Determinism: the same state must return equal kinds and fields.
//   - Completeness: every attribute that influences a computed result must
//     appear in fields. Attributes that do not, such as loggers or caches,
//     must not.
type Stateful interface {
	// CacheState returns a kind naming the concrete type and the attributes
	// to fingerprint, in a fixed order.
	CacheState() (kind string, fields []any)
}

// Fingerprint returns the identity of v.
//
// Supported values are nil, booleans, integers, floats (by IEEE-754 bits),
// strings, slices and arrays of supported values, maps with string keys,
// parameter values, arrays, shapes and types, gonum matrices and vectors,
// CSR matrices, identities and Stateful objects. Pointers are followed.
// Anything else yields ErrUnfingerprintable.
func Fingerprint(v any) (Identity, error) {
	e := encoder{h: sha256.New()}
	if err := e.encode(v, 0); err != nil {
		return "", err
	}
	sum := e.h.Sum(nil)
	return Identity(hex.EncodeToString(sum[:IdentityLength/2])), nil
}

// MustFingerprint is like Fingerprint but panics on error.
func MustFingerprint(v any) Identity {
	id, err := Fingerprint(v)
	if err != nil {
		panic(err)
	}
	return id
}

// Type tags keep encodings of different kinds disjoint.
const (
	tagNil byte = iota + 1
	tagBool
	tagInt
	tagUint
	tagFloat
	tagString
	tagList
	tagMap
	tagArray
	tagShape
	tagValue
	tagType
	tagDense
	tagVector
	tagCSR
	tagIdentity
	tagStateful
	tagNamed
)

type encoder struct {
	h   hash.Hash
	buf [8]byte
}

func (e *encoder) tag(t byte) { e.h.Write([]byte{t}) }

func (e *encoder) putUint(x uint64) {
	binary.LittleEndian.PutUint64(e.buf[:], x)
	e.h.Write(e.buf[:])
}

func (e *encoder) putInt(x int64) { e.putUint(uint64(x)) }

func (e *encoder) putFloat(x float64) { e.putUint(math.Float64bits(x)) }

func (e *encoder) putString(s string) {
	e.putUint(uint64(len(s)))
	e.h.Write([]byte(s))
}

func (e *encoder) floats(xs []float64) {
	e.putUint(uint64(len(xs)))
	for _, x := range xs {
		e.putFloat(x)
	}
}

func (e *encoder) shape(s params.Shape) {
	e.putUint(uint64(len(s)))
	for _, d := range s {
		e.putInt(int64(d))
	}
}

func (e *encoder) array(a params.Array) {
	e.shape(a.Shape)
	e.floats(a.Data)
}

func (e *encoder) encode(v any, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrUnfingerprintable, maxDepth)
	}

	switch x := v.(type) {
	case nil:
		e.tag(tagNil)
	case Stateful:
		if isNilPointer(x) {
			e.tag(tagNil)
			return nil
		}
		kind, fields := x.CacheState()
		e.tag(tagStateful)
		e.putString(kind)
		e.putUint(uint64(len(fields)))
		for _, f := range fields {
			if err := e.encode(f, depth+1); err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
		}
	case Identity:
		e.tag(tagIdentity)
		e.putString(string(x))
	case bool:
		e.tag(tagBool)
		if x {
			e.putUint(1)
		} else {
			e.putUint(0)
		}
	case int:
		e.tag(tagInt)
		e.putInt(int64(x))
	case int64:
		e.tag(tagInt)
		e.putInt(x)
	case float64:
		e.tag(tagFloat)
		e.putFloat(x)
	case string:
		e.tag(tagString)
		e.putString(x)
	case []float64:
		e.tag(tagList)
		e.putUint(uint64(len(x)))
		for _, f := range x {
			e.tag(tagFloat)
			e.putFloat(f)
		}
	case []any:
		e.tag(tagList)
		e.putUint(uint64(len(x)))
		for _, item := range x {
			if err := e.encode(item, depth+1); err != nil {
				return err
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.tag(tagMap)
		e.putUint(uint64(len(keys)))
		for _, k := range keys {
			e.putString(k)
			if err := e.encode(x[k], depth+1); err != nil {
				return err
			}
		}
	case params.Raw:
		return e.encode(map[string]any(x), depth)
	case params.Shape:
		e.tag(tagShape)
		e.shape(x)
	case params.Array:
		e.tag(tagArray)
		e.array(x)
	case *params.Array:
		if x == nil {
			e.tag(tagNil)
			return nil
		}
		return e.encode(*x, depth)
	case params.Value:
		e.tag(tagValue)
		names := x.Names()
		e.putUint(uint64(len(names)))
		for _, name := range names {
			a, _ := x.Get(name)
			e.putString(name)
			e.array(a)
		}
	case *params.Type:
		e.tag(tagType)
		names := x.Names()
		e.putUint(uint64(len(names)))
		for _, name := range names {
			c, _ := x.Component(name)
			e.putString(name)
			e.shape(c.Shape)
			if c.Default == nil {
				e.tag(tagNil)
				continue
			}
			e.tag(tagArray)
			e.array(*c.Default)
		}
	case *linalg.CSR:
		if x == nil {
			e.tag(tagNil)
			return nil
		}
		r, c := x.Dims()
		indptr, ind, data := x.Raw()
		e.tag(tagCSR)
		e.putInt(int64(r))
		e.putInt(int64(c))
		e.putUint(uint64(len(indptr)))
		for _, p := range indptr {
			e.putInt(int64(p))
		}
		e.putUint(uint64(len(ind)))
		for _, j := range ind {
			e.putInt(int64(j))
		}
		e.floats(data)
	case *mat.VecDense:
		if x == nil {
			e.tag(tagNil)
			return nil
		}
		e.tag(tagVector)
		e.floats(linalg.VectorData(x))
	case mat.Matrix:
		if isNilPointer(x) {
			e.tag(tagNil)
			return nil
		}
		r, c := x.Dims()
		e.tag(tagDense)
		e.putInt(int64(r))
		e.putInt(int64(c))
		e.floats(linalg.MatrixData(x))
	default:
		return e.encodeReflect(reflect.ValueOf(v), depth)
	}
	return nil
}

// encodeReflect handles named and less common kinds. Named types are tagged with
// their type name so that, for example, linalg.StorageDense and the integer
// 1 differ.
func (e *encoder) encodeReflect(rv reflect.Value, depth int) error {
	t := rv.Type()
	if t.Name() != "" && t.PkgPath() != "" {
		e.tag(tagNamed)
		e.putString(t.PkgPath() + "." + t.Name())
	}

	switch rv.Kind() {
	case reflect.Bool:
		return e.encode(rv.Bool(), depth)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.tag(tagInt)
		e.putInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.tag(tagUint)
		e.putUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		e.tag(tagFloat)
		e.putFloat(rv.Float())
	case reflect.String:
		e.tag(tagString)
		e.putString(rv.String())
	case reflect.Slice, reflect.Array:
		e.tag(tagList)
		e.putUint(uint64(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			if err := e.encode(rv.Index(i).Interface(), depth+1); err != nil {
				return err
			}
		}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key type %s", ErrUnfingerprintable, t.Key())
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		e.tag(tagMap)
		e.putUint(uint64(len(keys)))
		for _, k := range keys {
			e.putString(k.String())
			if err := e.encode(rv.MapIndex(k).Interface(), depth+1); err != nil {
				return err
			}
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			e.tag(tagNil)
			return nil
		}
		return e.encode(rv.Elem().Interface(), depth+1)
	default:
		return fmt.Errorf("%w: %s", ErrUnfingerprintable, t)
	}
	return nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

// Keyer derives cache keys from an object's state and a call description.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key returns the key for calling a method described by call on state.
	Key(state any, call ...any) (Key, error)
}

// DefaultKeyer fingerprints state and the call list with Fingerprint.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key fingerprints state for the identity part and the call list for the
// call part.
func (k *DefaultKeyer) Key(state any, call ...any) (Key, error) {
	id, err := Fingerprint(state)
	if err != nil {
		return Key{}, fmt.Errorf("cache: fingerprint state: %w", err)
	}
	c, err := Fingerprint(call)
	if err != nil {
		return Key{}, fmt.Errorf("cache: fingerprint call: %w", err)
	}
	return Key{Identity: id, Call: c}, nil
}

var _ Keyer = (*DefaultKeyer)(nil)
