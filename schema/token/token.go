// Package token holds the shorthand token table: the fixed mapping from
// schema shorthand strings to canonical field descriptors.
//
// Tokens have the form base[marker], where base is one of the grammar's
// base types (string, number, boolean, date, array, object, buffer,
// decimal, map, mixed) and the optional trailing marker is one of:
//
//	!   required
//	+   carries a sensible default value
//	!!  required and unique
//	?   explicitly optional (documentation intent only)
//
// Composite tokens are table entries in their own right, not combinations
// resolved at call time, so the table below is the complete enumeration.
// Named convenience tokens (email, password, url, phone, color) and the
// identity aliases (objectId, id) are entries too.
//
// Resolution is total: unknown tokens resolve to a plain text descriptor
// instead of failing, and Lookup reports the miss so the compiler can
// surface it as a warning.
package token

import (
	"regexp"
	"sort"
	"time"

	"github.com/developer-rs5/easy-mongoo/schema/field"
)

// Validation patterns used by the named convenience tokens and shared
// with name-driven inference at compile time.
var (
	Email    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	URL      = regexp.MustCompile(`^https?://\S+$`)
	Phone    = regexp.MustCompile(`^\+?[\d\s\-()]{7,20}$`)
	HexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// table is the explicit enumeration of every recognized token. Entries
// are constructors so each resolution yields a fresh descriptor.
var table = map[string]func() *field.Descriptor{
	// string
	"string":   func() *field.Descriptor { return field.String("").Descriptor() },
	"string!":  func() *field.Descriptor { return field.String("").Required().Descriptor() },
	"string!!": func() *field.Descriptor { return field.String("").Required().Unique().Descriptor() },
	"string+":  func() *field.Descriptor { return field.String("").Default("").Descriptor() },
	"string?":  func() *field.Descriptor { return field.String("").Optional().Descriptor() },

	// number
	"number":   func() *field.Descriptor { return field.Number("").Descriptor() },
	"number!":  func() *field.Descriptor { return field.Number("").Required().Descriptor() },
	"number!!": func() *field.Descriptor { return field.Number("").Required().Unique().Descriptor() },
	"number+":  func() *field.Descriptor { return field.Number("").Default(0).Descriptor() },
	"number?":  func() *field.Descriptor { return field.Number("").Optional().Descriptor() },

	// boolean
	"boolean":   func() *field.Descriptor { return field.Bool("").Descriptor() },
	"boolean!":  func() *field.Descriptor { return field.Bool("").Required().Descriptor() },
	"boolean!!": func() *field.Descriptor { return boolUnique() },
	"boolean+":  func() *field.Descriptor { return field.Bool("").Default(false).Descriptor() },
	"boolean?":  func() *field.Descriptor { return field.Bool("").Descriptor() },

	// date
	"date":   func() *field.Descriptor { return field.Time("").Descriptor() },
	"date!":  func() *field.Descriptor { return field.Time("").Required().Descriptor() },
	"date!!": func() *field.Descriptor { return timeUnique() },
	"date+":  func() *field.Descriptor { return field.Time("").Default(time.Now).Descriptor() },
	"date?":  func() *field.Descriptor { return field.Time("").Descriptor() },

	// array (repeated schemaless elements)
	"array":   func() *field.Descriptor { return repeated(field.Mixed("").Descriptor()) },
	"array!":  func() *field.Descriptor { return repeated(field.Mixed("").Required().Descriptor()) },
	"array!!": func() *field.Descriptor { return repeatedUnique() },
	"array+":  func() *field.Descriptor { return repeatedWithDefault() },
	"array?":  func() *field.Descriptor { return repeated(field.Mixed("").Descriptor()) },

	// object (free-form mapping)
	"object":   func() *field.Descriptor { return field.Map("").Descriptor() },
	"object!":  func() *field.Descriptor { return field.Map("").Required().Descriptor() },
	"object!!": func() *field.Descriptor { return mapUnique() },
	"object+":  func() *field.Descriptor { return field.Map("").Default(emptyMap).Descriptor() },
	"object?":  func() *field.Descriptor { return field.Map("").Descriptor() },

	// buffer
	"buffer":   func() *field.Descriptor { return field.Bytes("").Descriptor() },
	"buffer!":  func() *field.Descriptor { return field.Bytes("").Required().Descriptor() },
	"buffer!!": func() *field.Descriptor { return bytesUnique() },
	"buffer+":  func() *field.Descriptor { return bytesWithDefault() },
	"buffer?":  func() *field.Descriptor { return field.Bytes("").Descriptor() },

	// decimal
	"decimal":   func() *field.Descriptor { return field.Decimal("").Descriptor() },
	"decimal!":  func() *field.Descriptor { return field.Decimal("").Required().Descriptor() },
	"decimal!!": func() *field.Descriptor { return decimalUnique() },
	"decimal+":  func() *field.Descriptor { return field.Decimal("").Default("0").Descriptor() },
	"decimal?":  func() *field.Descriptor { return field.Decimal("").Descriptor() },

	// map
	"map":   func() *field.Descriptor { return field.Map("").Descriptor() },
	"map!":  func() *field.Descriptor { return field.Map("").Required().Descriptor() },
	"map!!": func() *field.Descriptor { return mapUnique() },
	"map+":  func() *field.Descriptor { return field.Map("").Default(emptyMap).Descriptor() },
	"map?":  func() *field.Descriptor { return field.Map("").Descriptor() },

	// mixed
	"mixed":   func() *field.Descriptor { return field.Mixed("").Descriptor() },
	"mixed!":  func() *field.Descriptor { return field.Mixed("").Required().Descriptor() },
	"mixed!!": func() *field.Descriptor { return mixedUnique() },
	"mixed+":  func() *field.Descriptor { return field.Mixed("").Descriptor() },
	"mixed?":  func() *field.Descriptor { return field.Mixed("").Descriptor() },

	// named convenience tokens
	"email":   func() *field.Descriptor { return email().Descriptor() },
	"email!":  func() *field.Descriptor { return email().Required().Descriptor() },
	"email!!": func() *field.Descriptor { return email().Required().Unique().Descriptor() },

	"password":  func() *field.Descriptor { return password() },
	"password!": func() *field.Descriptor { return password() },

	"url":  func() *field.Descriptor { return field.String("").Match(URL).Descriptor() },
	"url!": func() *field.Descriptor { return field.String("").Required().Match(URL).Descriptor() },

	"phone":  func() *field.Descriptor { return field.String("").Match(Phone).Descriptor() },
	"phone!": func() *field.Descriptor { return field.String("").Required().Match(Phone).Descriptor() },

	"color":  func() *field.Descriptor { return field.String("").Match(HexColor).Descriptor() },
	"color!": func() *field.Descriptor { return field.String("").Required().Match(HexColor).Descriptor() },

	// identity aliases
	"objectId":  func() *field.Descriptor { return field.ObjectID("").Descriptor() },
	"objectId!": func() *field.Descriptor { return field.ObjectID("").Required().Descriptor() },
	"id":        func() *field.Descriptor { return field.ObjectID("").Descriptor() },
}

// Lookup resolves a recognized token to a fresh descriptor. The second
// return reports recognition; unrecognized tokens return (nil, false).
func Lookup(tok string) (*field.Descriptor, bool) {
	build, ok := table[tok]
	if !ok {
		return nil, false
	}
	return build(), true
}

// Resolve is the total form of Lookup: unknown tokens resolve to the
// documented fallback, a plain text descriptor with no constraints.
func Resolve(tok string) *field.Descriptor {
	if fd, ok := Lookup(tok); ok {
		return fd
	}
	return Fallback()
}

// Fallback returns the descriptor unknown tokens resolve to.
func Fallback() *field.Descriptor {
	return field.String("").Descriptor()
}

// Recognized reports if a token is a table entry.
func Recognized(tok string) bool {
	_, ok := table[tok]
	return ok
}

// Tokens returns every recognized token in sorted order.
func Tokens() []string {
	out := make([]string, 0, len(table))
	for tok := range table {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func email() *field.StringBuilder {
	return field.String("").Lowercase().Match(Email)
}

func password() *field.Descriptor {
	return field.String("").Required().MinLen(6).Sensitive().Descriptor()
}

func emptyMap() any { return map[string]any{} }

func repeated(fd *field.Descriptor) *field.Descriptor {
	fd.Repeated = true
	return fd
}

func repeatedUnique() *field.Descriptor {
	fd := repeated(field.Mixed("").Required().Descriptor())
	fd.Unique = true
	return fd
}

func repeatedWithDefault() *field.Descriptor {
	fd := repeated(field.Mixed("").Descriptor())
	fd.Default = func() any { return []any{} }
	return fd
}

func bytesWithDefault() *field.Descriptor {
	fd := field.Bytes("").Descriptor()
	fd.Default = func() any { return []byte{} }
	return fd
}

// Unique markers on types without a unique builder method still need
// first-class table entries. They set the flag on the built descriptor.

func boolUnique() *field.Descriptor {
	fd := field.Bool("").Required().Descriptor()
	fd.Unique = true
	return fd
}

func timeUnique() *field.Descriptor {
	fd := field.Time("").Required().Descriptor()
	fd.Unique = true
	return fd
}

func mapUnique() *field.Descriptor {
	fd := field.Map("").Required().Descriptor()
	fd.Unique = true
	return fd
}

func bytesUnique() *field.Descriptor {
	fd := field.Bytes("").Required().Descriptor()
	fd.Unique = true
	return fd
}

func decimalUnique() *field.Descriptor {
	fd := field.Decimal("").Required().Descriptor()
	fd.Unique = true
	return fd
}

func mixedUnique() *field.Descriptor {
	fd := field.Mixed("").Required().Descriptor()
	fd.Unique = true
	return fd
}
