package mongoo

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a normalized runtime failure. The taxonomy is
// closed: every error leaving the model layer carries exactly one of
// these kinds.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDuplicateKey
	KindValidationFailed
	KindInvalidIdentifier
	KindNotFound
)

var kindNames = [...]string{
	KindUnknown:           "Unknown",
	KindDuplicateKey:      "DuplicateKey",
	KindValidationFailed:  "ValidationFailed",
	KindInvalidIdentifier: "InvalidIdentifier",
	KindNotFound:          "NotFound",
}

// String returns the kind's taxonomy name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Sentinel errors matching the taxonomy, for errors.Is.
var (
	// ErrDuplicateKey matches uniqueness violations.
	ErrDuplicateKey = errors.New("mongoo: duplicate key")

	// ErrValidationFailed matches constraint and validator failures.
	ErrValidationFailed = errors.New("mongoo: validation failed")

	// ErrInvalidIdentifier matches identifiers the store cannot parse.
	ErrInvalidIdentifier = errors.New("mongoo: invalid identifier")

	// ErrNotFound matches lookups that yielded no document.
	ErrNotFound = errors.New("mongoo: document not found")

	// ErrModelNotFound matches registry operations against a name
	// that was never registered.
	ErrModelNotFound = errors.New("mongoo: model not registered")
)

// An Error is the normalized record of one runtime failure. Message is
// user-facing and returned verbatim by Error; the original cause stays
// reachable through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// Error returns the user-facing message.
func (e *Error) Error() string { return e.Message }

// Unwrap returns the original failure the record was built from.
func (e *Error) Unwrap() error { return e.cause }

// Cause returns the original failure, or nil.
func (e *Error) Cause() error { return e.cause }

// Is matches the error against the taxonomy sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrDuplicateKey:
		return e.Kind == KindDuplicateKey
	case ErrValidationFailed:
		return e.Kind == KindValidationFailed
	case ErrInvalidIdentifier:
		return e.Kind == KindInvalidIdentifier
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// NewDuplicateKeyError records a uniqueness violation on the given
// field.
func NewDuplicateKeyError(field string, cause error) *Error {
	return &Error{
		Kind:    KindDuplicateKey,
		Message: fmt.Sprintf("%s already exists. Please use a different value.", field),
		cause:   cause,
	}
}

// NewValidationError records a constraint failure with its sub-error
// messages.
func NewValidationError(messages []string, cause error) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Message: fmt.Sprintf("Validation failed: %s", strings.Join(messages, ", ")),
		cause:   cause,
	}
}

// NewInvalidIdentifierError records an identifier that cannot be
// parsed as the store's key type.
func NewInvalidIdentifierError(cause error) *Error {
	return &Error{
		Kind:    KindInvalidIdentifier,
		Message: "Invalid ID format",
		cause:   cause,
	}
}

// NewNotFoundError records a failed lookup by identifier.
func NewNotFoundError(model, id string, cause error) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s with ID %s not found", model, id),
		cause:   cause,
	}
}

// NewUnknownError records a failure outside the taxonomy, named after
// the operation that was attempted.
func NewUnknownError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindUnknown,
		Message: fmt.Sprintf("Failed to %s", operation),
		cause:   cause,
	}
}

// IsDuplicateKey reports if the error is a normalized uniqueness
// violation.
func IsDuplicateKey(err error) bool { return isKind(err, KindDuplicateKey, ErrDuplicateKey) }

// IsValidationFailed reports if the error is a normalized validation
// failure.
func IsValidationFailed(err error) bool { return isKind(err, KindValidationFailed, ErrValidationFailed) }

// IsInvalidIdentifier reports if the error is a normalized identifier
// parse failure.
func IsInvalidIdentifier(err error) bool {
	return isKind(err, KindInvalidIdentifier, ErrInvalidIdentifier)
}

// IsNotFound reports if the error is a normalized missing-document
// failure.
func IsNotFound(err error) bool { return isKind(err, KindNotFound, ErrNotFound) }

// IsUnknown reports if the error normalized outside the specific
// taxonomy kinds.
func IsUnknown(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnknown
}

func isKind(err error, kind Kind, sentinel error) bool {
	if err == nil {
		return false
	}
	var e *Error
	return (errors.As(err, &e) && e.Kind == kind) || errors.Is(err, sentinel)
}

// ModelNotFoundError reports a registry operation against an
// unregistered model name. It is a programmer error, outside the
// runtime taxonomy.
type ModelNotFoundError struct {
	model string
}

// NewModelNotFoundError returns a ModelNotFoundError for the name.
func NewModelNotFoundError(model string) *ModelNotFoundError {
	return &ModelNotFoundError{model: model}
}

// Error returns the error string.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("mongoo: model %q is not registered", e.model)
}

// Model returns the unregistered model name.
func (e *ModelNotFoundError) Model() string { return e.model }

// Is reports whether the target matches ErrModelNotFound.
func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// IsModelNotFound reports if the error is a ModelNotFoundError.
func IsModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *ModelNotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrModelNotFound)
}
