package mongoo_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	mongoo "github.com/developer-rs5/easy-mongoo"
)

func TestDuplicateKeyError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mongoo.NewDuplicateKeyError("email", nil)
		assert.Equal(t, "email already exists. Please use a different value.", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := mongoo.NewDuplicateKeyError("email", nil)
		assert.True(t, errors.Is(err, mongoo.ErrDuplicateKey))
		assert.False(t, errors.Is(err, mongoo.ErrNotFound))
	})

	t.Run("IsDuplicateKey", func(t *testing.T) {
		err := mongoo.NewDuplicateKeyError("slug", nil)
		assert.True(t, mongoo.IsDuplicateKey(err))

		// Wrapped error
		wrapped := fmt.Errorf("saving: %w", err)
		assert.True(t, mongoo.IsDuplicateKey(wrapped))

		// Sentinel error
		assert.True(t, mongoo.IsDuplicateKey(mongoo.ErrDuplicateKey))

		// Non-matching error
		assert.False(t, mongoo.IsDuplicateKey(errors.New("other error")))
		assert.False(t, mongoo.IsDuplicateKey(nil))
	})
}

func TestValidationFailedError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mongoo.NewValidationError([]string{"name is required", "age must be at least 0"}, nil)
		assert.Equal(t, "Validation failed: name is required, age must be at least 0", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := mongoo.NewValidationError([]string{"name is required"}, nil)
		assert.True(t, errors.Is(err, mongoo.ErrValidationFailed))
	})

	t.Run("IsValidationFailed", func(t *testing.T) {
		err := mongoo.NewValidationError([]string{"bad"}, nil)
		assert.True(t, mongoo.IsValidationFailed(err))
		assert.True(t, mongoo.IsValidationFailed(fmt.Errorf("create: %w", err)))
		assert.True(t, mongoo.IsValidationFailed(mongoo.ErrValidationFailed))
		assert.False(t, mongoo.IsValidationFailed(nil))
	})
}

func TestInvalidIdentifierError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mongoo.NewInvalidIdentifierError(nil)
		assert.Equal(t, "Invalid ID format", err.Error())
	})

	t.Run("IsInvalidIdentifier", func(t *testing.T) {
		err := mongoo.NewInvalidIdentifierError(errors.New("bad uuid"))
		assert.True(t, mongoo.IsInvalidIdentifier(err))
		assert.True(t, mongoo.IsInvalidIdentifier(fmt.Errorf("find: %w", err)))
		assert.False(t, mongoo.IsInvalidIdentifier(errors.New("other")))
	})
}

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mongoo.NewNotFoundError("User", "42", nil)
		assert.Equal(t, "User with ID 42 not found", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := mongoo.NewNotFoundError("Post", "1", nil)
		assert.True(t, errors.Is(err, mongoo.ErrNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := mongoo.NewNotFoundError("Comment", "7", nil)
		assert.True(t, mongoo.IsNotFound(err))
		assert.True(t, mongoo.IsNotFound(fmt.Errorf("lookup: %w", err)))
		assert.True(t, mongoo.IsNotFound(mongoo.ErrNotFound))
		assert.False(t, mongoo.IsNotFound(nil))
	})
}

func TestUnknownError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mongoo.NewUnknownError("create document", errors.New("disk full"))
		assert.Equal(t, "Failed to create document", err.Error())
	})

	t.Run("IsUnknown", func(t *testing.T) {
		err := mongoo.NewUnknownError("update document", nil)
		assert.True(t, mongoo.IsUnknown(err))
		assert.False(t, mongoo.IsUnknown(mongoo.NewNotFoundError("User", "1", nil)))
		assert.False(t, mongoo.IsUnknown(errors.New("other")))
	})
}

func TestErrorCause(t *testing.T) {
	cause := errors.New("E11000 duplicate key error")
	err := mongoo.NewDuplicateKeyError("email", cause)
	assert.Equal(t, cause, err.Cause())
	assert.Equal(t, cause, errors.Unwrap(err))

	bare := mongoo.NewInvalidIdentifierError(nil)
	assert.Nil(t, bare.Cause())
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind mongoo.Kind
		want string
	}{
		{mongoo.KindUnknown, "Unknown"},
		{mongoo.KindDuplicateKey, "DuplicateKey"},
		{mongoo.KindValidationFailed, "ValidationFailed"},
		{mongoo.KindInvalidIdentifier, "InvalidIdentifier"},
		{mongoo.KindNotFound, "NotFound"},
		{mongoo.Kind(99), "Kind(99)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestModelNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mongoo.NewModelNotFoundError("Ghost")
		assert.Equal(t, `mongoo: model "Ghost" is not registered`, err.Error())
		assert.Equal(t, "Ghost", err.Model())
	})

	t.Run("Is", func(t *testing.T) {
		err := mongoo.NewModelNotFoundError("Ghost")
		assert.True(t, errors.Is(err, mongoo.ErrModelNotFound))
	})

	t.Run("IsModelNotFound", func(t *testing.T) {
		err := mongoo.NewModelNotFoundError("Ghost")
		assert.True(t, mongoo.IsModelNotFound(err))
		assert.True(t, mongoo.IsModelNotFound(fmt.Errorf("extend: %w", err)))
		assert.True(t, mongoo.IsModelNotFound(mongoo.ErrModelNotFound))
		assert.False(t, mongoo.IsModelNotFound(nil))
		assert.False(t, mongoo.IsModelNotFound(errors.New("other")))
	})
}
