package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidDefinition is the sentinel every definition error matches
// through errors.Is.
var ErrInvalidDefinition = errors.New("mongoo: invalid schema definition")

// A DefinitionError reports a malformed schema declaration. It is
// surfaced synchronously at compile time, never deferred to first use.
type DefinitionError struct {
	Model  string
	Field  string
	Reason string
	cause  error
}

// NewDefinitionError creates a definition error for one field.
func NewDefinitionError(model, field, reason string) *DefinitionError {
	return &DefinitionError{Model: model, Field: field, Reason: reason}
}

// WrapDefinitionError creates a definition error caused by err, keeping
// err reachable through Unwrap.
func WrapDefinitionError(model, field string, err error) *DefinitionError {
	return &DefinitionError{Model: model, Field: field, Reason: err.Error(), cause: err}
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	switch {
	case e.Model != "" && e.Field != "":
		return fmt.Sprintf("mongoo: invalid schema definition: model %q, field %q: %s", e.Model, e.Field, e.Reason)
	case e.Model != "":
		return fmt.Sprintf("mongoo: invalid schema definition: model %q: %s", e.Model, e.Reason)
	default:
		return fmt.Sprintf("mongoo: invalid schema definition: %s", e.Reason)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *DefinitionError) Unwrap() error { return e.cause }

// Is matches the ErrInvalidDefinition sentinel.
func (e *DefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

// IsDefinitionError reports if err is (or wraps) a definition error.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}
