package params

import (
	"errors"
	"fmt"
)

// Sentinel errors for parameter operations.
var (
	// ErrSchemaConflict is returned when two schemas assign different shapes
	// (or defaults) to the same component name.
	ErrSchemaConflict = errors.New("params: schema conflict")

	// ErrParameterValidation is returned when a parameter does not satisfy
	// its schema.
	ErrParameterValidation = errors.New("params: parameter validation failed")

	// ErrUnknownSubEntity is returned by Scheme.Map for a name that was never
	// registered through an Inherit.
	ErrUnknownSubEntity = errors.New("params: unknown sub-entity")

	// ErrInvalidShape is returned for shapes with negative extents or
	// arrays whose data does not fill their shape.
	ErrInvalidShape = errors.New("params: invalid shape")
)

// SchemaConflictError describes a merge conflict on a single component.
type SchemaConflictError struct {
	Component string
	Existing  Shape
	Incoming  Shape
	Source    string
	Reason    string
}

func (e *SchemaConflictError) Error() string {
	msg := fmt.Sprintf("params: schema conflict on %q: existing shape %s, %s has shape %s",
		e.Component, e.Existing, e.sourceName(), e.Incoming)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *SchemaConflictError) sourceName() string {
	if e.Source == "" {
		return "local requirement"
	}
	return "sub-entity " + fmt.Sprintf("%q", e.Source)
}

// Unwrap returns ErrSchemaConflict.
func (e *SchemaConflictError) Unwrap() error { return ErrSchemaConflict }

// ValidationError describes why a parameter component was rejected.
type ValidationError struct {
	Component string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Component == "" {
		return "params: invalid parameter: " + e.Reason
	}
	return fmt.Sprintf("params: invalid parameter component %q: %s", e.Component, e.Reason)
}

// Unwrap returns ErrParameterValidation.
func (e *ValidationError) Unwrap() error { return ErrParameterValidation }

func validationErrorf(component, format string, args ...any) error {
	return &ValidationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}
