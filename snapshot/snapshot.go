// Package snapshot encodes compiled schema trees into a stable binary
// form.
//
// The encoding is canonical: two compilations of the same declaration
// produce identical bytes, so the sha256 fingerprint identifies a
// schema version. Function-valued members (default producers, custom
// validators) have no value identity and are recorded by presence
// only; a decoded tree therefore serves structural inspection and
// fingerprint comparison, not live registration.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"regexp"

	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode renders the tree in its canonical binary form.
func Encode(t *schema.Tree) ([]byte, error) {
	if t == nil {
		return nil, errors.New("snapshot: nil tree")
	}
	data, err := msgpack.Marshal(fromTree(t))
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode %q: %w", t.Name, err)
	}
	return data, nil
}

// Decode reconstructs a tree from its canonical form.
func Decode(data []byte) (*schema.Tree, error) {
	var p treePayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return toTree(&p)
}

// Fingerprint returns the sha256 hex digest of the tree's canonical
// form.
func Fingerprint(t *schema.Tree) (string, error) {
	data, err := Encode(t)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// The payload mirrors the compiled tree with every member reduced to a
// serializable value. Structs keep msgpack output in declaration
// order, which is what makes the encoding canonical.
type treePayload struct {
	Name       string
	Collection string
	Identity   string
	Timestamps *stampPayload
	Options    optionsPayload
	Declared   declaredPayload
	Fields     []*nodePayload
}

type stampPayload struct {
	CreatedAt string
	UpdatedAt string
}

// optionsPayload records the resolved option values, so an explicit
// setting and its default encode identically.
type optionsPayload struct {
	Timestamps    bool
	IdentityAlias string
	Strip         bool
	Collection    string
}

type declaredPayload struct {
	Virtuals []string
	Hooks    []string
	Indexes  []string
	Helpers  []string
}

type nodePayload struct {
	Name string
	Kind string
	Ref  string
	Desc *descPayload
	Tree *treePayload
	Elem *nodePayload
}

type descPayload struct {
	Type           string
	Required       bool
	Unique         bool
	Repeated       bool
	Relation       string
	Enums          []string
	Lowercase      *bool
	Trim           *bool
	Match          string
	Min            *float64
	Max            *float64
	MinLen         *int
	MaxLen         *int
	Sensitive      bool
	Immutable      bool
	Comment        string
	Default        any
	DynamicDefault bool
	Validators     int
}

func fromTree(t *schema.Tree) *treePayload {
	p := &treePayload{
		Name:       t.Name,
		Collection: t.Collection,
		Identity:   t.Identity,
		Options: optionsPayload{
			Timestamps:    t.Options.TimestampsEnabled(),
			IdentityAlias: t.Options.IdentityAlias(),
			Strip:         t.Options.StripEnabled(),
			Collection:    t.Options.Collection,
		},
		Declared: declaredPayload{
			Virtuals: t.Declared.Virtuals,
			Hooks:    t.Declared.Hooks,
			Indexes:  t.Declared.Indexes,
			Helpers:  t.Declared.Helpers,
		},
		Fields: make([]*nodePayload, len(t.Fields)),
	}
	if t.Timestamps != nil {
		p.Timestamps = &stampPayload{CreatedAt: t.Timestamps.CreatedAt, UpdatedAt: t.Timestamps.UpdatedAt}
	}
	for i, n := range t.Fields {
		p.Fields[i] = fromNode(n)
	}
	return p
}

func fromNode(n *schema.Node) *nodePayload {
	p := &nodePayload{Name: n.Name, Kind: n.Kind.String(), Ref: n.Ref}
	switch {
	case n.Leaf():
		p.Desc = fromDescriptor(n.Desc)
	case n.Kind == schema.KindObject:
		p.Tree = fromTree(n.Tree)
	case n.Kind == schema.KindList:
		p.Elem = fromNode(n.Elem)
	}
	return p
}

func fromDescriptor(d *field.Descriptor) *descPayload {
	if d == nil {
		return nil
	}
	p := &descPayload{
		Type:       d.Type.String(),
		Required:   d.Required,
		Unique:     d.Unique,
		Repeated:   d.Repeated,
		Relation:   d.Relation,
		Enums:      d.Enums,
		Lowercase:  d.Lowercase,
		Trim:       d.Trim,
		Min:        d.Min,
		Max:        d.Max,
		MinLen:     d.MinLen,
		MaxLen:     d.MaxLen,
		Sensitive:  d.Sensitive,
		Immutable:  d.Immutable,
		Comment:    d.Comment,
		Validators: len(d.Validators),
	}
	if d.Match != nil {
		p.Match = d.Match.String()
	}
	if d.Default != nil {
		if reflect.ValueOf(d.Default).Kind() == reflect.Func {
			p.DynamicDefault = true
		} else {
			p.Default = d.Default
		}
	}
	return p
}

func toTree(p *treePayload) (*schema.Tree, error) {
	t := &schema.Tree{
		Name:       p.Name,
		Collection: p.Collection,
		Identity:   p.Identity,
		Options: schema.Options{
			Timestamps:          schema.Bool(p.Options.Timestamps),
			SerializeIdentityAs: p.Options.IdentityAlias,
			StripInternalFields: schema.Bool(p.Options.Strip),
			Collection:          p.Options.Collection,
		},
		Declared: schema.Declared{
			Virtuals: p.Declared.Virtuals,
			Hooks:    p.Declared.Hooks,
			Indexes:  p.Declared.Indexes,
			Helpers:  p.Declared.Helpers,
		},
		Fields: make([]*schema.Node, len(p.Fields)),
	}
	if p.Timestamps != nil {
		t.Timestamps = &schema.Timestamps{CreatedAt: p.Timestamps.CreatedAt, UpdatedAt: p.Timestamps.UpdatedAt}
	}
	for i, n := range p.Fields {
		node, err := toNode(n)
		if err != nil {
			return nil, err
		}
		t.Fields[i] = node
	}
	return t, nil
}

func toNode(p *nodePayload) (*schema.Node, error) {
	kind, ok := kindFromName(p.Kind)
	if !ok {
		return nil, fmt.Errorf("snapshot: unknown node kind %q", p.Kind)
	}
	n := &schema.Node{Name: p.Name, Kind: kind, Ref: p.Ref}
	switch kind {
	case schema.KindLeaf, schema.KindRef:
		desc, err := toDescriptor(p.Name, p.Desc)
		if err != nil {
			return nil, err
		}
		n.Desc = desc
	case schema.KindObject:
		if p.Tree == nil {
			return nil, fmt.Errorf("snapshot: object node %q has no tree", p.Name)
		}
		tree, err := toTree(p.Tree)
		if err != nil {
			return nil, err
		}
		n.Tree = tree
	case schema.KindList:
		if p.Elem == nil {
			return nil, fmt.Errorf("snapshot: list node %q has no element", p.Name)
		}
		elem, err := toNode(p.Elem)
		if err != nil {
			return nil, err
		}
		n.Elem = elem
	}
	return n, nil
}

func toDescriptor(name string, p *descPayload) (*field.Descriptor, error) {
	if p == nil {
		return nil, fmt.Errorf("snapshot: leaf node %q has no descriptor", name)
	}
	typ, ok := field.ParseType(p.Type)
	if !ok {
		return nil, fmt.Errorf("snapshot: field %q: unknown type %q", name, p.Type)
	}
	d := &field.Descriptor{
		Name:      name,
		Type:      typ,
		Required:  p.Required,
		Unique:    p.Unique,
		Repeated:  p.Repeated,
		Relation:  p.Relation,
		Enums:     p.Enums,
		Lowercase: p.Lowercase,
		Trim:      p.Trim,
		Min:       p.Min,
		Max:       p.Max,
		MinLen:    p.MinLen,
		MaxLen:    p.MaxLen,
		Sensitive: p.Sensitive,
		Immutable: p.Immutable,
		Comment:   p.Comment,
		Default:   p.Default,
	}
	if p.Match != "" {
		re, err := regexp.Compile(p.Match)
		if err != nil {
			return nil, fmt.Errorf("snapshot: field %q: %w", name, err)
		}
		d.Match = re
	}
	return d, nil
}

func kindFromName(s string) (schema.Kind, bool) {
	switch s {
	case "leaf":
		return schema.KindLeaf, true
	case "object":
		return schema.KindObject, true
	case "list":
		return schema.KindList, true
	case "ref":
		return schema.KindRef, true
	}
	return 0, false
}
