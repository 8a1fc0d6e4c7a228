package mongoo

import (
	"errors"
	"regexp"
	"strings"

	"github.com/developer-rs5/easy-mongoo/driver"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// A Normalizer funnels raw store failures into the closed error
// taxonomy. Detection runs most-specific first: the driver package's
// typed shapes, then driver-specific error values and duck-typed code
// carriers, then message fragments, and finally the Unknown catch-all.
// Every normalized error is logged before it is returned, and
// normalization itself never fails.
type Normalizer struct {
	logger zerolog.Logger
	stats  *Stats
}

// NewNormalizer returns a Normalizer logging through the given logger.
func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// WithStats returns a copy of the normalizer that also counts
// normalized failures on stats.
func (n *Normalizer) WithStats(stats *Stats) *Normalizer {
	c := *n
	c.stats = stats
	return &c
}

// errorCoder is implemented by database errors carrying a string code
// (pq.Error, pgx, modernc.org/sqlite wrappers).
type errorCoder interface {
	Code() string
}

// errorNumberer is implemented by database errors carrying a numeric
// code (MySQL-compatible drivers).
type errorNumberer interface {
	Number() uint16
}

// sqlStateError is implemented by errors exposing a SQLSTATE code.
type sqlStateError interface {
	SQLState() string
}

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// Normalize maps a raw failure to its taxonomy record. The op names
// the attempted operation for the Unknown fallback ("Failed to
// {op}"); model and id feed the NotFound message when the raw failure
// does not carry its own. A nil error normalizes to nil.
func (n *Normalizer) Normalize(op, model, id string, err error) *Error {
	if err == nil {
		return nil
	}
	rec := n.classify(op, model, id, err)
	n.record(op, model, rec, err)
	return rec
}

func (n *Normalizer) classify(op, model, id string, err error) *Error {
	// Already normalized failures pass through unchanged.
	var normalized *Error
	if errors.As(err, &normalized) {
		return normalized
	}

	var (
		dup      *driver.DuplicateKeyError
		invalid  *driver.ValidationError
		cast     *driver.CastError
		missing  *driver.NotFoundError
		mysqlErr *mysql.MySQLError
		pqErr    *pq.Error
	)
	switch {
	case errors.As(err, &missing):
		m, i := missing.Model, missing.ID
		if m == "" {
			m = model
		}
		if i == "" {
			i = id
		}
		return NewNotFoundError(m, i, err)
	case errors.As(err, &dup):
		return NewDuplicateKeyError(dup.Field, err)
	case errors.As(err, &invalid):
		return NewValidationError(invalid.Messages(), err)
	case errors.As(err, &cast):
		return NewInvalidIdentifierError(err)
	case errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation:
		return NewDuplicateKeyError(fieldFromConstraint(pqErr.Constraint, err.Error()), err)
	case errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry:
		return NewDuplicateKeyError(fieldFromMessage(err.Error()), err)
	}

	// Duck-typed code carriers cover drivers this package does not
	// import directly.
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == pgUniqueViolation {
		return NewDuplicateKeyError(fieldFromMessage(err.Error()), err)
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == pgUniqueViolation {
		return NewDuplicateKeyError(fieldFromMessage(err.Error()), err)
	}
	if e, ok := asError[errorNumberer](err); ok && e.Number() == mysqlDuplicateEntry {
		return NewDuplicateKeyError(fieldFromMessage(err.Error()), err)
	}

	msg := err.Error()
	switch {
	case containsAny(msg,
		"E11000",                     // MongoDB duplicate key
		"UNIQUE constraint failed",   // SQLite
		"Duplicate entry",            // MySQL string form
		"violates unique constraint", // Postgres string form
	):
		return NewDuplicateKeyError(fieldFromMessage(msg), err)
	case containsAny(msg,
		"Cast to ObjectId failed",
		"invalid UUID",
		"encoding/hex",
	):
		return NewInvalidIdentifierError(err)
	case containsAny(msg, "validation failed", "Validation failed"):
		return NewValidationError([]string{strings.TrimSpace(trimPrefixFold(msg, "validation failed:"))}, err)
	}
	return NewUnknownError(op, err)
}

func (n *Normalizer) record(op, model string, rec *Error, cause error) {
	if n.stats != nil {
		n.stats.errorNormalized(rec.Kind)
	}
	evt := n.logger.Error()
	if rec.Kind == KindNotFound {
		evt = n.logger.Warn()
	}
	evt.Err(cause).
		Str("model", model).
		Str("op", op).
		Str("kind", rec.Kind.String()).
		Msg(rec.Message)
}

// Message fragments the store encodes the violated field in.
var (
	sqliteUniqueRe = regexp.MustCompile(`UNIQUE constraint failed: \w+\.(\w+)`)
	mysqlKeyRe     = regexp.MustCompile(`for key '([^']+)'`)
	pgConstraintRe = regexp.MustCompile(`unique constraint "([^"]+)"`)
	mongoIndexRe   = regexp.MustCompile(`index: (\w+?)_-?\d+`)
	mongoDupKeyRe  = regexp.MustCompile(`dup key: \{ "?(\w+)"?\s*:`)
	indexSuffixRe  = regexp.MustCompile(`_-?\d+$`)
)

// fieldFromMessage extracts the violated field name from a duplicate
// key message. Unrecognized layouts fall back to "value", keeping the
// user-facing message well-formed.
func fieldFromMessage(msg string) string {
	if m := sqliteUniqueRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := mongoDupKeyRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := mongoIndexRe.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := mysqlKeyRe.FindStringSubmatch(msg); m != nil {
		key := m[1]
		if i := strings.LastIndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		return indexSuffixRe.ReplaceAllString(key, "")
	}
	if m := pgConstraintRe.FindStringSubmatch(msg); m != nil {
		return fieldFromConstraint(m[1], "")
	}
	return "value"
}

// fieldFromConstraint maps a Postgres constraint name like
// "users_email_key" to its column.
func fieldFromConstraint(constraint, msg string) string {
	if constraint == "" {
		if msg != "" {
			return fieldFromMessage(msg)
		}
		return "value"
	}
	name := strings.TrimSuffix(constraint, "_key")
	name = strings.TrimSuffix(name, "_idx")
	if i := strings.IndexByte(name, '_'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// asError extracts an error implementing T from the chain.
func asError[T any](err error) (T, bool) {
	var zero T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return zero, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func trimPrefixFold(s, prefix string) string {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}
	return s
}
