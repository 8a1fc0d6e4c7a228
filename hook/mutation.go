package hook

import (
	"fmt"
	"sort"

	"github.com/developer-rs5/easy-mongoo/schema"
)

// DocMutation is the concrete mutation carrier drivers hand through the
// hook chain. It tracks a working document and the set of fields the
// mutation changed.
type DocMutation struct {
	model   string
	op      Op
	doc     schema.Document
	changed map[string]struct{}
}

// NewMutation starts a create-style mutation: every field of doc counts
// as changed.
func NewMutation(model string, op Op, doc schema.Document) *DocMutation {
	m := &DocMutation{
		model:   model,
		op:      op,
		doc:     doc.Clone(),
		changed: make(map[string]struct{}, len(doc)),
	}
	if m.doc == nil {
		m.doc = schema.Document{}
	}
	for k := range doc {
		m.changed[k] = struct{}{}
	}
	return m
}

// NewUpdateMutation starts an update-style mutation: the working
// document is prev overlaid with changes, and only the changed keys
// count as modified.
func NewUpdateMutation(model string, op Op, prev, changes schema.Document) *DocMutation {
	m := &DocMutation{
		model:   model,
		op:      op,
		doc:     prev.Clone(),
		changed: make(map[string]struct{}, len(changes)),
	}
	if m.doc == nil {
		m.doc = schema.Document{}
	}
	for k, v := range changes {
		m.doc[k] = v
		m.changed[k] = struct{}{}
	}
	return m
}

// Op returns the operation being performed.
func (m *DocMutation) Op() Op { return m.op }

// Model returns the model name.
func (m *DocMutation) Model() string { return m.model }

// Field returns the current value of a field.
func (m *DocMutation) Field(name string) (any, bool) {
	v, ok := m.doc[name]
	return v, ok
}

// SetField rewrites a field and marks it changed.
func (m *DocMutation) SetField(name string, v any) error {
	if name == "" {
		return fmt.Errorf("mongoo: cannot set unnamed field on %s mutation", m.model)
	}
	m.doc[name] = v
	m.changed[name] = struct{}{}
	return nil
}

// FieldChanged reports if the field was modified by this mutation.
func (m *DocMutation) FieldChanged(name string) bool {
	_, ok := m.changed[name]
	return ok
}

// Fields returns the working document's field names in sorted order.
func (m *DocMutation) Fields() []string {
	out := make([]string, 0, len(m.doc))
	for k := range m.doc {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Document returns the working document.
func (m *DocMutation) Document() schema.Document { return m.doc }

var _ Mutation = (*DocMutation)(nil)
