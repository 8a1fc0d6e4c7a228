package mongoo

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/developer-rs5/easy-mongoo/driver"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNil(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	assert.Nil(t, n.Normalize("create document", "User", "", nil))
}

func TestNormalizePassThrough(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	orig := NewDuplicateKeyError("email", nil)
	got := n.Normalize("create document", "User", "", orig)
	assert.Same(t, orig, got)

	wrapped := fmt.Errorf("saving: %w", orig)
	got = n.Normalize("create document", "User", "", wrapped)
	assert.Same(t, orig, got)
}

func TestNormalizeDriverShapes(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())

	t.Run("NotFound", func(t *testing.T) {
		rec := n.Normalize("find document", "", "", &driver.NotFoundError{Model: "User", ID: "42"})
		assert.Equal(t, KindNotFound, rec.Kind)
		assert.Equal(t, "User with ID 42 not found", rec.Message)
	})

	t.Run("NotFoundFallbackArgs", func(t *testing.T) {
		rec := n.Normalize("find document", "Post", "9", &driver.NotFoundError{})
		assert.Equal(t, "Post with ID 9 not found", rec.Message)
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		rec := n.Normalize("create document", "User", "", &driver.DuplicateKeyError{Field: "email", Value: "a@x.io"})
		assert.Equal(t, KindDuplicateKey, rec.Kind)
		assert.Equal(t, "email already exists. Please use a different value.", rec.Message)
	})

	t.Run("Validation", func(t *testing.T) {
		rec := n.Normalize("create document", "User", "", &driver.ValidationError{Errors: []driver.FieldError{
			{Field: "name", Message: "name is required"},
			{Field: "age", Message: "age must be at least 0"},
		}})
		assert.Equal(t, KindValidationFailed, rec.Kind)
		assert.Equal(t, "Validation failed: name is required, age must be at least 0", rec.Message)
	})

	t.Run("Cast", func(t *testing.T) {
		rec := n.Normalize("find document", "User", "abc", &driver.CastError{Value: "abc"})
		assert.Equal(t, KindInvalidIdentifier, rec.Kind)
		assert.Equal(t, "Invalid ID format", rec.Message)
	})
}

func TestNormalizePostgresError(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	rec := n.Normalize("create document", "User", "", &pq.Error{
		Code:       "23505",
		Constraint: "users_email_key",
		Message:    `duplicate key value violates unique constraint "users_email_key"`,
	})
	assert.Equal(t, KindDuplicateKey, rec.Kind)
	assert.Equal(t, "email already exists. Please use a different value.", rec.Message)

	// Other postgres failures stay unknown.
	rec = n.Normalize("create document", "User", "", &pq.Error{Code: "42P01", Message: "relation does not exist"})
	assert.Equal(t, KindUnknown, rec.Kind)
}

func TestNormalizeMySQLError(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	rec := n.Normalize("create document", "User", "", &mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'a@x.io' for key 'users.email_1'",
	})
	assert.Equal(t, KindDuplicateKey, rec.Kind)
	assert.Equal(t, "email already exists. Please use a different value.", rec.Message)
}

type sqlStateFailure struct{ msg string }

func (e sqlStateFailure) Error() string    { return e.msg }
func (e sqlStateFailure) SQLState() string { return "23505" }

type codeFailure struct{ msg string }

func (e codeFailure) Error() string { return e.msg }
func (e codeFailure) Code() string  { return "23505" }

type numberFailure struct{ msg string }

func (e numberFailure) Error() string  { return e.msg }
func (e numberFailure) Number() uint16 { return 1062 }

func TestNormalizeDuckTyped(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())

	rec := n.Normalize("create document", "User", "", sqlStateFailure{
		msg: `duplicate key value violates unique constraint "users_email_key"`,
	})
	assert.Equal(t, KindDuplicateKey, rec.Kind)
	assert.Equal(t, "email already exists. Please use a different value.", rec.Message)

	rec = n.Normalize("create document", "User", "", codeFailure{
		msg: "UNIQUE constraint failed: users.email",
	})
	assert.Equal(t, KindDuplicateKey, rec.Kind)
	assert.Equal(t, "email already exists. Please use a different value.", rec.Message)

	rec = n.Normalize("create document", "User", "", numberFailure{
		msg: "Duplicate entry 'x' for key 'email_1'",
	})
	assert.Equal(t, KindDuplicateKey, rec.Kind)
	assert.Equal(t, "email already exists. Please use a different value.", rec.Message)

	// Wrapped duck-typed failures are still found.
	rec = n.Normalize("create document", "User", "", fmt.Errorf("exec: %w", sqlStateFailure{
		msg: `unique constraint "users_slug_key"`,
	}))
	assert.Equal(t, KindDuplicateKey, rec.Kind)
	assert.Equal(t, "slug already exists. Please use a different value.", rec.Message)
}

func TestNormalizeStringFallbacks(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{
			name:    "mongo duplicate",
			err:     errors.New(`E11000 duplicate key error collection: app.users index: email_1 dup key: { email: "a@x.io" }`),
			kind:    KindDuplicateKey,
			message: "email already exists. Please use a different value.",
		},
		{
			name:    "sqlite unique",
			err:     errors.New("UNIQUE constraint failed: users.email"),
			kind:    KindDuplicateKey,
			message: "email already exists. Please use a different value.",
		},
		{
			name:    "mysql duplicate entry",
			err:     errors.New("Duplicate entry 'a' for key 'users.slug_1'"),
			kind:    KindDuplicateKey,
			message: "slug already exists. Please use a different value.",
		},
		{
			name:    "cast failure",
			err:     errors.New(`Cast to ObjectId failed for value "abc"`),
			kind:    KindInvalidIdentifier,
			message: "Invalid ID format",
		},
		{
			name:    "uuid parse failure",
			err:     errors.New("invalid UUID length: 3"),
			kind:    KindInvalidIdentifier,
			message: "Invalid ID format",
		},
		{
			name:    "validation string",
			err:     errors.New("validation failed: name is required"),
			kind:    KindValidationFailed,
			message: "Validation failed: name is required",
		},
		{
			name:    "unknown",
			err:     errors.New("connection reset by peer"),
			kind:    KindUnknown,
			message: "Failed to create document",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := n.Normalize("create document", "User", "", tt.err)
			require.NotNil(t, rec)
			assert.Equal(t, tt.kind, rec.Kind)
			assert.Equal(t, tt.message, rec.Message)
			assert.Equal(t, tt.err, rec.Cause())
		})
	}
}

func TestNormalizeLogs(t *testing.T) {
	var buf bytes.Buffer
	n := NewNormalizer(zerolog.New(&buf))

	n.Normalize("create document", "User", "", &driver.DuplicateKeyError{Field: "email"})
	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"model":"User"`)
	assert.Contains(t, out, `"op":"create document"`)
	assert.Contains(t, out, `"kind":"DuplicateKey"`)

	// Missing documents log at warn.
	buf.Reset()
	n.Normalize("find document", "User", "42", &driver.NotFoundError{Model: "User", ID: "42"})
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNormalizeStats(t *testing.T) {
	stats := &Stats{}
	n := NewNormalizer(zerolog.Nop()).WithStats(stats)
	n.Normalize("create document", "User", "", &driver.DuplicateKeyError{Field: "email"})
	n.Normalize("find document", "User", "1", &driver.NotFoundError{Model: "User", ID: "1"})
	n.Normalize("find document", "User", "2", &driver.NotFoundError{Model: "User", ID: "2"})

	snap := stats.Snapshot()
	assert.Equal(t, int64(3), snap.Errors)
	assert.Equal(t, int64(1), snap.ByKind[KindDuplicateKey])
	assert.Equal(t, int64(2), snap.ByKind[KindNotFound])
}

func TestFieldFromMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"UNIQUE constraint failed: users.email", "email"},
		{`E11000 ... index: email_1 dup key: { email: "x" }`, "email"},
		{"E11000 duplicate key error index: tenant_id_1", "tenant_id"},
		{"Duplicate entry 'a' for key 'users.email_1'", "email"},
		{"Duplicate entry 'a' for key 'slug'", "slug"},
		{`duplicate key value violates unique constraint "users_email_key"`, "email"},
		{"something with no recognizable layout", "value"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fieldFromMessage(tt.msg), "msg=%q", tt.msg)
	}
}

func TestFieldFromConstraint(t *testing.T) {
	tests := []struct {
		constraint string
		msg        string
		want       string
	}{
		{"users_email_key", "", "email"},
		{"orders_customer_id_idx", "", "customer_id"},
		{"email", "", "email"},
		{"", "UNIQUE constraint failed: users.slug", "slug"},
		{"", "", "value"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fieldFromConstraint(tt.constraint, tt.msg), "constraint=%q", tt.constraint)
	}
}
