package driver

import (
	"fmt"
	"strings"
)

// DuplicateKeyError is the raw shape of a uniqueness violation.
type DuplicateKeyError struct {
	Field string
	Value any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on field %q (value %v)", e.Field, e.Value)
}

// FieldError is one failed constraint inside a ValidationError.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string { return e.Message }

// ValidationError aggregates per-field constraint failures of one
// write.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Messages(), ", "))
}

// Messages returns the sub-error messages in declaration order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe.Message
	}
	return out
}

// CastError is the raw shape of an identifier that cannot be parsed as
// the store's native key type.
type CastError struct {
	Value any
}

func (e *CastError) Error() string {
	return fmt.Sprintf("Cast to ObjectId failed for value %q", fmt.Sprint(e.Value))
}

// NotFoundError is the raw shape of a lookup that matched nothing.
type NotFoundError struct {
	Model string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no document with id %q", e.Model, e.ID)
}
