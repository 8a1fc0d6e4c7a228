package schema

import "fmt"

// MarshalDocument applies the tree's serialization transform to a
// document: sensitive fields are dropped, the internal identity field is
// replaced by its public alias rendered as a string, and internal
// bookkeeping fields are stripped when the options say so. The input
// document is never mutated.
func (t *Tree) MarshalDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := doc.Clone()
	for _, n := range t.Fields {
		if n.Kind == KindLeaf && n.Desc != nil && n.Desc.Sensitive {
			delete(out, n.Name)
		}
	}
	if id, ok := out[t.identityField()]; ok {
		delete(out, t.identityField())
		out[t.Options.IdentityAlias()] = IdentityString(id)
	}
	if t.Options.StripEnabled() {
		delete(out, VersionField)
	}
	return out
}

func (t *Tree) identityField() string {
	if t.Identity != "" {
		return t.Identity
	}
	return IdentityField
}

// IdentityString renders an identity value in its public string form.
func IdentityString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
