// Package field provides fluent builders for defining document schema fields.
//
// Field names follow document conventions (camelCase), matching the keys
// stored in the collection:
//
//	field.String("email")
//	field.Number("age")
//	field.Time("publishedAt")
//
// # Field Types
//
// The package covers the base types of the schema grammar:
//
//	// Text fields
//	field.String("name")
//	field.Enum("status").Values("draft", "published", "archived")
//
//	// Numeric fields
//	field.Number("price")
//	field.Decimal("balance")
//
//	// Boolean and date fields
//	field.Bool("isActive")
//	field.Time("expiresAt")
//
//	// Binary, object and schemaless fields
//	field.Bytes("payload")
//	field.Map("metadata")
//	field.Mixed("extra")
//
//	// References to other models
//	field.ObjectID("owner").Ref("User")
//
// # Field Options
//
// Fields support constraint and canonicalization options:
//
//	field.String("email").
//	    Required().             // must be present on create
//	    Unique().               // at most one document per value
//	    Lowercase().            // fold case before store
//	    Match(emailPattern).    // pattern validation
//	    Comment("Login email")
//
// # Validation
//
// Built-in validators cover length, bounds and patterns:
//
//	field.String("name").NotEmpty().MaxLen(100)
//	field.Number("age").Range(0, 150)
//
// Custom validators receive the raw value:
//
//	field.String("slug").Validate(func(v any) error { ... })
//
// Builder misuse (negative lengths, inverted bounds, empty enum values)
// is recorded on the descriptor and surfaced as a definition error when
// the schema compiles, never as a panic.
package field
