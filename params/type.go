package params

import (
	"fmt"
	"sort"
	"strings"
)

// Component is one entry of a parameter Type.
type Component struct {
	Shape Shape
	// Default, when set, is substituted for a missing component during
	// parsing. Components without a default are required.
	Default *Array
}

func (c Component) equal(other Component) bool {
	if !c.Shape.Equal(other.Shape) {
		return false
	}
	switch {
	case c.Default == nil && other.Default == nil:
		return true
	case c.Default == nil || other.Default == nil:
		return false
	default:
		return c.Default.Equal(*other.Default)
	}
}

// Type is an immutable parameter schema mapping component names to shapes.
//
// Components are kept sorted by name so two types holding the same entries
// are indistinguishable regardless of how they were built. A nil *Type is
// the empty type.
type Type struct {
	names      []string
	components map[string]Component
}

// NewType creates a Type in which every component is required.
func NewType(shapes map[string]Shape) (*Type, error) {
	comps := make(map[string]Component, len(shapes))
	for name, shape := range shapes {
		comps[name] = Component{Shape: shape}
	}
	return NewTypeWithDefaults(comps)
}

// MustType is like NewType but panics on error. It is intended for
// package-level schema literals.
func MustType(shapes map[string]Shape) *Type {
	t, err := NewType(shapes)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTypeWithDefaults creates a Type from full component descriptions.
func NewTypeWithDefaults(components map[string]Component) (*Type, error) {
	t := &Type{
		names:      make([]string, 0, len(components)),
		components: make(map[string]Component, len(components)),
	}
	for name, c := range components {
		if name == "" {
			return nil, fmt.Errorf("%w: empty component name", ErrInvalidShape)
		}
		if err := c.Shape.Validate(); err != nil {
			return nil, fmt.Errorf("component %q: %w", name, err)
		}
		if c.Default != nil {
			if len(c.Default.Data) != c.Default.Shape.Size() {
				return nil, fmt.Errorf("%w: default for %q holds %d values for shape %s",
					ErrInvalidShape, name, len(c.Default.Data), c.Default.Shape)
			}
			def, ok := broadcastTo(*c.Default, c.Shape)
			if !ok {
				return nil, fmt.Errorf("%w: default for %q has shape %s, want %s",
					ErrInvalidShape, name, c.Default.Shape, c.Shape)
			}
			c.Default = &def
		}
		c.Shape = c.Shape.Clone()
		t.components[name] = c
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t, nil
}

// Names returns the component names in sorted order.
func (t *Type) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len returns the number of components.
func (t *Type) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Empty reports whether t has no components.
func (t *Type) Empty() bool { return t.Len() == 0 }

// Has reports whether name is a component of t.
func (t *Type) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.components[name]
	return ok
}

// Shape returns the declared shape of name.
func (t *Type) Shape(name string) (Shape, bool) {
	c, ok := t.Component(name)
	if !ok {
		return nil, false
	}
	return c.Shape, true
}

// Component returns the full description of name.
func (t *Type) Component(name string) (Component, bool) {
	if t == nil {
		return Component{}, false
	}
	c, ok := t.components[name]
	if !ok {
		return Component{}, false
	}
	c.Shape = c.Shape.Clone()
	if c.Default != nil {
		def := c.Default.Clone()
		c.Default = &def
	}
	return c, true
}

// Equal reports whether t and other declare the same components.
func (t *Type) Equal(other *Type) bool {
	if t.Len() != other.Len() {
		return false
	}
	for _, name := range t.Names() {
		oc, ok := other.components[name]
		if !ok || !t.components[name].equal(oc) {
			return false
		}
	}
	return true
}

// String renders t as {name: shape, ...}.
func (t *Type) String() string {
	parts := make([]string, 0, t.Len())
	for _, name := range t.Names() {
		c := t.components[name]
		s := name + ": " + c.Shape.String()
		if c.Default != nil {
			s += "=" + c.Default.String()
		}
		parts = append(parts, s)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Merge adds the components of additions to existing and returns the result.
//
// renames maps a component name of additions to the name it takes in the
// result. source names the entity additions belong to and is reported in
// conflicts. Neither input is modified. The result does not depend on the
// order in which non-conflicting types are merged.
func Merge(existing, additions *Type, renames map[string]string, source string) (*Type, error) {
	comps := make(map[string]Component, existing.Len()+additions.Len())
	for _, name := range existing.Names() {
		comps[name] = existing.components[name]
	}
	claimed := make(map[string]string, additions.Len())
	for _, local := range additions.Names() {
		global := local
		if r, ok := renames[local]; ok && r != "" {
			global = r
		}
		incoming := additions.components[local]
		if other, ok := claimed[global]; ok {
			return nil, &SchemaConflictError{
				Component: global,
				Existing:  additions.components[other].Shape.Clone(),
				Incoming:  incoming.Shape.Clone(),
				Source:    source,
				Reason:    fmt.Sprintf("renames merge %q and %q", other, local),
			}
		}
		claimed[global] = local
		current, ok := comps[global]
		if !ok {
			comps[global] = incoming
			continue
		}
		if current.equal(incoming) {
			continue
		}
		reason := ""
		if current.Shape.Equal(incoming.Shape) {
			reason = "defaults differ"
		}
		return nil, &SchemaConflictError{
			Component: global,
			Existing:  current.Shape.Clone(),
			Incoming:  incoming.Shape.Clone(),
			Source:    source,
			Reason:    reason,
		}
	}
	return NewTypeWithDefaults(comps)
}
