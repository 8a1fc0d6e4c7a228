// Package mongoo turns shorthand schema definitions into registered,
// queryable document models. A definition is a list of entries whose
// string tokens ("string!", "email!!", "number?") compile into a typed
// field tree; the compiled tree is scanned for recognizable shapes and
// enriched with derived virtuals, indexes, hooks and scopes before it
// is bound to a store.
//
// The package is organized around an explicit Registry. Registration
// is idempotent per model name, first-registration-wins, and safe for
// concurrent use:
//
//	reg := mongoo.NewRegistry()
//	user, err := reg.RegisterOrGet(ctx, "User", []mongoo.Entry{
//		mongoo.Token("name", "string!"),
//		mongoo.Token("email", "email!!"),
//		mongoo.Token("age", "number?"),
//	}, mongoo.Options{})
//
// The returned Model exposes document CRUD against the registry's
// driver, runs the model's hook chains around each write, and applies
// declared plus synthesized validation before documents are stored.
package mongoo

import (
	"context"

	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/synth"
)

// Aliases for the schema building blocks, so a model definition reads
// from a single import.
type (
	// Entry is one field in a model definition.
	Entry = schema.Entry
	// Document is a stored or in-flight document.
	Document = schema.Document
	// Options carries per-model compilation settings.
	Options = schema.Options
)

// Definition entry constructors, re-exported from package schema.
var (
	// Token declares a field by shorthand token, e.g. "string!".
	Token = schema.Token
	// Field declares a field by explicit builder.
	Field = schema.Field
	// Object declares an embedded sub-document.
	Object = schema.Object
	// List declares an array of the element entry.
	List = schema.List
	// Ref declares a relation to another registered model.
	Ref = schema.Ref
)

// A Method is a per-document function attached to a model. The
// receiving document is the first argument.
type Method func(ctx context.Context, m *Model, doc Document, args ...any) (any, error)

// A Static is a model-level function attached to a model.
type Static func(ctx context.Context, m *Model, args ...any) (any, error)

// A QueryHelper rewrites a filter before it reaches the store.
type QueryHelper func(filter Document, args ...any) Document

// A Plugin receives a registered model's compiled tree and feature
// set and may mutate the features in place.
type Plugin func(tree *schema.Tree, features *synth.FeatureSet) error
