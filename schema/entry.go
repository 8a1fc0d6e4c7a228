package schema

import (
	"fmt"
	"strings"

	"github.com/developer-rs5/easy-mongoo/schema/field"
)

// An Entry is one raw schema declaration. The set of variants is closed:
// a shorthand token, an explicit field builder, an embedded object, a
// repeated-element wrapper, or a relation marker. Nothing else can
// implement it.
type Entry interface {
	// EntryName returns the field name the entry declares.
	EntryName() string
	entry()
}

// Token declares a field through a shorthand token such as "string!" or
// "email!!".
func Token(name, tok string) Entry {
	return &TokenEntry{name: name, tok: tok}
}

// TokenEntry is a shorthand-token declaration.
type TokenEntry struct {
	name string
	tok  string
}

// EntryName returns the declared field name.
func (e *TokenEntry) EntryName() string { return e.name }

// Token returns the shorthand token.
func (e *TokenEntry) Token() string { return e.tok }

func (e *TokenEntry) entry() {}

// Field declares a field through an explicit builder, carrying any
// partial constraints the author set.
func Field(b field.Builder) Entry {
	return &FieldEntry{builder: b}
}

// FieldEntry is an explicit partial-descriptor declaration.
type FieldEntry struct {
	builder field.Builder
}

// EntryName returns the declared field name.
func (e *FieldEntry) EntryName() string {
	if e.builder == nil {
		return ""
	}
	return e.builder.Descriptor().Name
}

// Builder returns the wrapped field builder.
func (e *FieldEntry) Builder() field.Builder { return e.builder }

func (e *FieldEntry) entry() {}

// Object declares an embedded sub-document with its own entries.
func Object(name string, entries ...Entry) Entry {
	return &ObjectEntry{name: name, entries: entries}
}

// ObjectEntry is an embedded sub-tree declaration.
type ObjectEntry struct {
	name    string
	entries []Entry
}

// EntryName returns the declared field name.
func (e *ObjectEntry) EntryName() string { return e.name }

// Entries returns the sub-document's declarations in order.
func (e *ObjectEntry) Entries() []Entry { return e.entries }

func (e *ObjectEntry) entry() {}

// List declares a repeated-value field. The element entry is normalized
// one level deep; its name is ignored.
func List(name string, elem Entry) Entry {
	return &ListEntry{name: name, elem: elem}
}

// ListEntry is a repeated-element declaration.
type ListEntry struct {
	name string
	elem Entry
}

// EntryName returns the declared field name.
func (e *ListEntry) EntryName() string { return e.name }

// Elem returns the element declaration.
func (e *ListEntry) Elem() Entry { return e.elem }

func (e *ListEntry) entry() {}

// Ref declares an opaque reference to another model's identity.
func Ref(name, model string) Entry {
	return &RefEntry{name: name, model: model}
}

// RefEntry is a relation-marker declaration.
type RefEntry struct {
	name  string
	model string
}

// EntryName returns the declared field name.
func (e *RefEntry) EntryName() string { return e.name }

// Model returns the referenced model name.
func (e *RefEntry) Model() string { return e.model }

func (e *RefEntry) entry() {}

// Signature summarizes a raw descriptor cheaply, without compiling it.
// The registry compares signatures to detect a second registration
// arriving with a different descriptor for an already-registered name.
func Signature(entries []Entry) string {
	var b strings.Builder
	writeSignature(&b, entries)
	return b.String()
}

func writeSignature(b *strings.Builder, entries []Entry) {
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(',')
		}
		switch e := e.(type) {
		case *TokenEntry:
			fmt.Fprintf(b, "t:%s:%s", e.name, e.tok)
		case *FieldEntry:
			fd := e.builder.Descriptor()
			fmt.Fprintf(b, "f:%s:%s:%t:%t", fd.Name, fd.Type, fd.Required, fd.Unique)
		case *ObjectEntry:
			fmt.Fprintf(b, "o:%s(", e.name)
			writeSignature(b, e.entries)
			b.WriteByte(')')
		case *ListEntry:
			fmt.Fprintf(b, "l:%s(", e.name)
			writeSignature(b, []Entry{e.elem})
			b.WriteByte(')')
		case *RefEntry:
			fmt.Fprintf(b, "r:%s:%s", e.name, e.model)
		}
	}
}
