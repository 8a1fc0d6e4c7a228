// Package schema defines the canonical schema model: documents, the
// closed set of raw entry variants a schema is declared with, and the
// compiled schema tree with its structural options.
//
// A schema is declared as an ordered list of entries:
//
//	entries := []schema.Entry{
//	    schema.Token("name", "string!"),
//	    schema.Token("email", "email!!"),
//	    schema.Field(field.Number("age").Range(0, 150)),
//	    schema.Object("address",
//	        schema.Token("city", "string"),
//	        schema.Token("zip", "string"),
//	    ),
//	    schema.List("tags", schema.Token("", "string")),
//	    schema.Ref("owner", "User"),
//	}
//
// The compiler turns entries into a Tree whose nodes are one of exactly
// four kinds: a leaf descriptor, an embedded subtree, a repeated-element
// wrapper, or an opaque relation marker. Schemas are always trees;
// references to other models never embed the target model's structure.
package schema

import (
	"fmt"

	"github.com/developer-rs5/easy-mongoo/schema/field"
)

// Internal bookkeeping field names and defaults.
const (
	IdentityField        = "_id"
	VersionField         = "__v"
	DefaultIdentityAlias = "id"
	CreatedAtField       = "createdAt"
	UpdatedAtField       = "updatedAt"
)

// A Document is one record of a collection, keyed by field name.
type Document map[string]any

// Clone returns a deep copy of the document. Nested maps and slices are
// copied; other values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Options is the recognized schema-level configuration. The zero value
// means: timestamps on, identity serialized as "id", internal fields
// stripped.
type Options struct {
	// Timestamps controls injection of the createdAt and updatedAt
	// fields. nil defaults to enabled.
	Timestamps *bool
	// SerializeIdentityAs is the public alias replacing the internal
	// identity field during serialization. Empty defaults to "id".
	SerializeIdentityAs string
	// StripInternalFields controls removal of internal bookkeeping
	// fields during serialization. nil defaults to enabled.
	StripInternalFields *bool
	// Collection overrides the derived collection name.
	Collection string
	// Declared names features the caller attaches alongside the
	// descriptor, so synthesis can yield to them.
	Declared Declared
}

// TimestampsEnabled reports whether timestamp injection applies.
func (o Options) TimestampsEnabled() bool {
	return o.Timestamps == nil || *o.Timestamps
}

// IdentityAlias returns the public identity field name.
func (o Options) IdentityAlias() string {
	if o.SerializeIdentityAs == "" {
		return DefaultIdentityAlias
	}
	return o.SerializeIdentityAs
}

// StripEnabled reports whether internal fields are stripped during
// serialization.
func (o Options) StripEnabled() bool {
	return o.StripInternalFields == nil || *o.StripInternalFields
}

// Bool returns a pointer to v, for filling the optional booleans above.
func Bool(v bool) *bool { return &v }

// Declared names user-declared features so synthesized ones never
// collide with them.
type Declared struct {
	Virtuals []string
	Hooks    []string
	Indexes  []string
	Helpers  []string
}

// HasVirtual reports if a computed field of this name was declared.
func (d Declared) HasVirtual(name string) bool { return containsName(d.Virtuals, name) }

// HasHook reports if a hook of this name was declared.
func (d Declared) HasHook(name string) bool { return containsName(d.Hooks, name) }

// HasIndex reports if an index of this name was declared.
func (d Declared) HasIndex(name string) bool { return containsName(d.Indexes, name) }

// HasHelper reports if a query helper of this name was declared.
func (d Declared) HasHelper(name string) bool { return containsName(d.Helpers, name) }

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// A Warning records a non-fatal observation made while compiling,
// such as an unrecognized shorthand token resolved to the fallback.
type Warning struct {
	Field  string
	Token  string
	Reason string
}

func (w Warning) String() string {
	if w.Token != "" {
		return fmt.Sprintf("field %q: %s (token %q)", w.Field, w.Reason, w.Token)
	}
	return fmt.Sprintf("field %q: %s", w.Field, w.Reason)
}

// Kind discriminates the four node shapes of a compiled tree.
type Kind uint8

const (
	KindLeaf Kind = iota + 1
	KindObject
	KindList
	KindRef
)

var kindNames = [...]string{KindLeaf: "leaf", KindObject: "object", KindList: "list", KindRef: "ref"}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// A Node is one compiled field of a tree. Exactly one payload is set,
// matching the kind: Desc for leaves and relation markers, Tree for
// embedded objects, Elem for repeated elements.
type Node struct {
	Name string
	Kind Kind
	Desc *field.Descriptor
	Tree *Tree
	Elem *Node
	Ref  string
}

// Leaf reports if the node carries a field descriptor directly.
func (n *Node) Leaf() bool { return n.Kind == KindLeaf || n.Kind == KindRef }

// Timestamps names the injected timestamp fields of a tree.
type Timestamps struct {
	CreatedAt string
	UpdatedAt string
}

// A Tree is the compiled canonical schema of one model: the ordered
// fields, the structural options, and the bookkeeping metadata the
// compiler attached.
type Tree struct {
	Name       string
	Collection string
	Fields     []*Node
	Options    Options
	Timestamps *Timestamps
	Identity   string
	Warnings   []Warning
	Declared   Declared
}

// Lookup returns the top-level node of the given name, or nil.
func (t *Tree) Lookup(name string) *Node {
	for _, n := range t.Fields {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// HasField reports if a top-level field of the given name exists,
// including the injected timestamp fields.
func (t *Tree) HasField(name string) bool {
	if t.Lookup(name) != nil {
		return true
	}
	if t.Timestamps != nil && (name == t.Timestamps.CreatedAt || name == t.Timestamps.UpdatedAt) {
		return true
	}
	return name == t.Identity
}

// FieldNames returns the declared field names in order.
func (t *Tree) FieldNames() []string {
	out := make([]string, len(t.Fields))
	for i, n := range t.Fields {
		out[i] = n.Name
	}
	return out
}

// Leaves returns the top-level nodes carrying a descriptor.
func (t *Tree) Leaves() []*Node {
	out := make([]*Node, 0, len(t.Fields))
	for _, n := range t.Fields {
		if n.Leaf() {
			out = append(out, n)
		}
	}
	return out
}
