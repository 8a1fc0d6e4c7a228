// Package virtual defines computed document fields: values derived from
// a document on read, never persisted.
package virtual

import (
	"fmt"

	"github.com/developer-rs5/easy-mongoo/schema"
)

// A Getter computes the virtual's value from a document.
type Getter func(doc schema.Document) any

// A Setter maps an assigned virtual value back onto document fields.
type Setter func(doc schema.Document, v any) error

// A Spec describes one computed field.
type Spec struct {
	Name string
	Get  Getter
	Set  Setter
}

// Resolve computes the virtual's value, or nil without a getter.
func (s Spec) Resolve(doc schema.Document) any {
	if s.Get == nil {
		return nil
	}
	return s.Get(doc)
}

// Assign applies the virtual's setter to the document.
func (s Spec) Assign(doc schema.Document, v any) error {
	if s.Set == nil {
		return fmt.Errorf("mongoo: virtual %q has no setter", s.Name)
	}
	return s.Set(doc, v)
}

// Materialize returns a copy of the document with every virtual's value
// filled in under its name. Virtuals that resolve to nil are skipped.
func Materialize(doc schema.Document, specs ...Spec) schema.Document {
	out := doc.Clone()
	for _, s := range specs {
		if v := s.Resolve(doc); v != nil {
			out[s.Name] = v
		}
	}
	return out
}
