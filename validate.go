package mongoo

import (
	"fmt"

	"github.com/developer-rs5/easy-mongoo/driver"
	"github.com/developer-rs5/easy-mongoo/schema"
)

// applyDefaults fills missing fields from their descriptors' defaults.
// Sub-documents that are present are filled recursively; absent
// sub-documents are not conjured.
func applyDefaults(t *schema.Tree, doc schema.Document) {
	for _, n := range t.Fields {
		switch {
		case n.Leaf():
			if _, ok := doc[n.Name]; !ok && n.Desc.HasDefault() {
				doc[n.Name] = n.Desc.DefaultValue()
			}
		case n.Kind == schema.KindObject:
			if sub, ok := asDocument(doc[n.Name]); ok {
				applyDefaults(n.Tree, sub)
			}
		}
	}
}

// normalizeDocument applies each field's canonicalization flags (trim,
// case folding) to the values present in doc, in place.
func normalizeDocument(t *schema.Tree, doc schema.Document) {
	for _, n := range t.Fields {
		v, ok := doc[n.Name]
		if !ok {
			continue
		}
		switch n.Kind {
		case schema.KindLeaf, schema.KindRef:
			doc[n.Name] = n.Desc.Normalize(v)
		case schema.KindObject:
			if sub, ok := asDocument(v); ok {
				normalizeDocument(n.Tree, sub)
			}
		case schema.KindList:
			normalizeList(n.Elem, v)
		}
	}
}

func normalizeList(elem *schema.Node, v any) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	for i, item := range items {
		switch {
		case elem.Leaf():
			items[i] = elem.Desc.Normalize(item)
		case elem.Kind == schema.KindObject:
			if sub, ok := asDocument(item); ok {
				normalizeDocument(elem.Tree, sub)
			}
		}
	}
}

// validateDocument checks doc against the tree's constraints. On
// create every required field must be present; on update only the
// supplied fields are checked. It returns a *driver.ValidationError
// carrying one FieldError per violation, or nil.
func validateDocument(t *schema.Tree, doc schema.Document, create bool) error {
	errs := validateFields(t, doc, "", create)
	if len(errs) == 0 {
		return nil
	}
	return &driver.ValidationError{Errors: errs}
}

func validateFields(t *schema.Tree, doc schema.Document, prefix string, create bool) []driver.FieldError {
	var errs []driver.FieldError
	for _, n := range t.Fields {
		path := prefix + n.Name
		v, present := doc[n.Name]
		switch n.Kind {
		case schema.KindLeaf, schema.KindRef:
			if !present || v == nil {
				if create && n.Desc.Required {
					errs = append(errs, driver.FieldError{Field: path, Message: fmt.Sprintf("%s is required", path)})
				}
				continue
			}
			if err := n.Desc.Validate(v); err != nil {
				errs = append(errs, driver.FieldError{Field: path, Message: err.Error()})
			}
		case schema.KindObject:
			if !present {
				continue
			}
			sub, ok := asDocument(v)
			if !ok {
				errs = append(errs, driver.FieldError{Field: path, Message: fmt.Sprintf("%s must be a document", path)})
				continue
			}
			errs = append(errs, validateFields(n.Tree, sub, path+".", create)...)
		case schema.KindList:
			if !present || v == nil {
				if create && listRequired(n) {
					errs = append(errs, driver.FieldError{Field: path, Message: fmt.Sprintf("%s is required", path)})
				}
				continue
			}
			errs = append(errs, validateListItems(n.Elem, v, path, create)...)
		}
	}
	return errs
}

func validateListItems(elem *schema.Node, v any, path string, create bool) []driver.FieldError {
	items, ok := v.([]any)
	if !ok {
		return []driver.FieldError{{Field: path, Message: fmt.Sprintf("%s must be an array", path)}}
	}
	var errs []driver.FieldError
	for i, item := range items {
		at := fmt.Sprintf("%s.%d", path, i)
		switch {
		case elem.Leaf():
			if item == nil {
				continue
			}
			if err := elem.Desc.Validate(item); err != nil {
				errs = append(errs, driver.FieldError{Field: at, Message: err.Error()})
			}
		case elem.Kind == schema.KindObject:
			sub, ok := asDocument(item)
			if !ok {
				errs = append(errs, driver.FieldError{Field: at, Message: fmt.Sprintf("%s must be a document", at)})
				continue
			}
			errs = append(errs, validateFields(elem.Tree, sub, at+".", create)...)
		}
	}
	return errs
}

// Requiredness of a repeated field rides on its element descriptor.
func listRequired(n *schema.Node) bool {
	return n.Elem != nil && n.Elem.Leaf() && n.Elem.Desc.Required
}

// stripImmutable removes immutable fields from an update's change set.
// Attempts to rewrite them are dropped, not rejected.
func stripImmutable(t *schema.Tree, changes schema.Document) {
	for _, n := range t.Fields {
		if n.Leaf() && n.Desc.Immutable {
			delete(changes, n.Name)
		}
	}
}

func asDocument(v any) (schema.Document, bool) {
	switch t := v.(type) {
	case schema.Document:
		return t, true
	case map[string]any:
		return schema.Document(t), true
	default:
		return nil, false
	}
}
