package params

import (
	"fmt"
	"sort"
)

// Parametric is implemented by anything that owns a parameter Type.
type Parametric interface {
	ParameterType() *Type
}

// Inherit registers a sub-entity whose parameter type is merged into the
// owner's type.
type Inherit struct {
	// Name identifies the sub-entity for Scheme.Map.
	Name string

	// Entity is the sub-entity. A nil Entity registers Name with an empty
	// projection.
	Entity Parametric

	// Rename maps the sub-entity's local component names to the names they
	// take in the owner's type. Components not listed keep their name.
	Rename map[string]string
}

// Scheme is the parameter state of a composite object: its merged Type and
// the record of which components belong to which sub-entity.
//
// Contract:
// - Immutability: a Scheme never changes after BuildScheme returns.
// - Concurrency: safe for concurrent use.
type Scheme struct {
	typ  *Type
	subs map[string]subEntity
}

type subEntity struct {
	typ *Type
	// globalOf maps each local component name to the owner's name for it.
	globalOf map[string]string
}

// BuildScheme merges the local requirements of an owner with the types of
// the sub-entities it inherits from.
//
// Sub-entities are merged in sorted name order, though the resulting type is
// the same for any order. Two sub-entities declaring the same global name
// with different shapes fail with ErrSchemaConflict unless a Rename separates
// them.
func BuildScheme(local *Type, inherits ...Inherit) (*Scheme, error) {
	sorted := make([]Inherit, len(inherits))
	copy(sorted, inherits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	merged, err := Merge(nil, local, nil, "")
	if err != nil {
		return nil, err
	}

	s := &Scheme{subs: make(map[string]subEntity, len(sorted))}
	for _, inh := range sorted {
		if inh.Name == "" {
			return nil, fmt.Errorf("%w: empty sub-entity name", ErrUnknownSubEntity)
		}
		if _, dup := s.subs[inh.Name]; dup {
			return nil, fmt.Errorf("params: sub-entity %q registered twice", inh.Name)
		}

		var subType *Type
		if inh.Entity != nil {
			subType = inh.Entity.ParameterType()
		}
		for local := range inh.Rename {
			if !subType.Has(local) {
				return nil, fmt.Errorf("params: rename of %q for sub-entity %q: no such component", local, inh.Name)
			}
		}

		merged, err = Merge(merged, subType, inh.Rename, inh.Name)
		if err != nil {
			return nil, err
		}

		globalOf := make(map[string]string, subType.Len())
		for _, name := range subType.Names() {
			global := name
			if r, ok := inh.Rename[name]; ok && r != "" {
				global = r
			}
			globalOf[name] = global
		}
		s.subs[inh.Name] = subEntity{typ: subType, globalOf: globalOf}
	}
	s.typ = merged
	return s, nil
}

// ParameterType returns the merged type.
func (s *Scheme) ParameterType() *Type {
	if s == nil {
		return nil
	}
	return s.typ
}

// Parse validates raw against the merged type.
func (s *Scheme) Parse(raw Raw) (Value, error) {
	return s.ParameterType().Parse(raw)
}

// SubEntities returns the registered sub-entity names in sorted order.
func (s *Scheme) SubEntities() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.subs))
	for name := range s.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map projects v onto the components the named sub-entity expects, renamed
// back to the sub-entity's local names.
//
// Map is pure and idempotent: a value that already carries the sub-entity's
// type is returned unchanged.
func (s *Scheme) Map(v Value, name string) (Value, error) {
	if s == nil {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownSubEntity, name)
	}
	sub, ok := s.subs[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownSubEntity, name, s.SubEntities())
	}
	if v.typ != nil && v.typ == sub.typ {
		return v, nil
	}

	arrays := make(map[string]Array, len(sub.globalOf))
	for local, global := range sub.globalOf {
		a, ok := v.arrays[global]
		if !ok {
			return Value{}, validationErrorf(global, "missing from value projected for %q", name)
		}
		arrays[local] = a
	}
	out := Value{typ: sub.typ, arrays: arrays}
	if err := sub.typ.Validate(out); err != nil {
		return Value{}, err
	}
	return out, nil
}
