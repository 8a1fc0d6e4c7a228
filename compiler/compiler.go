// Package compiler turns raw schema definitions into canonical trees.
//
// A definition is an ordered list of entries, each a shorthand token, a
// fluent field builder, an embedded object, a list, or a relation
// marker. Compile walks the entries in order, normalizes each into a
// typed node, applies name-driven inference to fill the gaps the author
// left unset, and assembles the tree together with the structural
// options (timestamp fields, identity serialization).
//
// Compilation is a pure transformation. Malformed definitions fail
// immediately with a schema.DefinitionError; unknown shorthand tokens
// never fail, they fall back to a plain string field and are reported
// on the tree's Warnings slice.
package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"
	"github.com/developer-rs5/easy-mongoo/schema/token"

	"github.com/go-openapi/inflect"
)

// RelationPrefix marks a shorthand token as a reference to another
// model, as in "ref:User" or "ref:User!".
const RelationPrefix = "ref:"

var rules = ruleset()

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	for _, w := range []string{
		"equipment", "information", "money", "species", "series", "staff",
	} {
		rules.AddUncountable(w)
	}
	return rules
}

// CollectionName derives the physical collection name for a model:
// the lowercased, pluralized model name, e.g. "User" becomes "users"
// and "Category" becomes "categories".
func CollectionName(model string) string {
	return rules.Pluralize(strings.ToLower(model))
}

// Compile normalizes an ordered schema definition into a canonical
// tree for the named model. Entry order is preserved in the output.
// Structural defaults come from opts: timestamp metadata unless
// disabled, the identity alias used at serialization time, and an
// explicit collection name overriding the derived one.
func Compile(model string, entries []schema.Entry, opts schema.Options) (*schema.Tree, error) {
	if model == "" {
		return nil, schema.NewDefinitionError(model, "", "model name cannot be empty")
	}
	if strings.ContainsAny(model, " \t\n") {
		return nil, schema.NewDefinitionError(model, "", "model name cannot contain whitespace")
	}
	c := &compiler{model: model, opts: opts}
	fields, err := c.fields(entries)
	if err != nil {
		return nil, err
	}
	tree := &schema.Tree{
		Name:       model,
		Collection: opts.Collection,
		Fields:     fields,
		Options:    opts,
		Identity:   schema.IdentityField,
		Warnings:   c.warnings,
		Declared:   opts.Declared,
	}
	if tree.Collection == "" {
		tree.Collection = CollectionName(model)
	}
	if opts.TimestampsEnabled() {
		tree.Timestamps = &schema.Timestamps{
			CreatedAt: schema.CreatedAtField,
			UpdatedAt: schema.UpdatedAtField,
		}
	}
	return tree, nil
}

type compiler struct {
	model    string
	opts     schema.Options
	warnings []schema.Warning
}

// fields normalizes one level of entries, rejecting redeclared and
// reserved names.
func (c *compiler) fields(entries []schema.Entry) ([]*schema.Node, error) {
	nodes := make([]*schema.Node, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := e.EntryName()
		if err := c.checkName(name, seen); err != nil {
			return nil, err
		}
		seen[name] = struct{}{}
		n, err := c.node(name, e)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *compiler) checkName(name string, seen map[string]struct{}) error {
	switch {
	case name == "":
		return schema.NewDefinitionError(c.model, name, "field name cannot be empty")
	case strings.Contains(name, "."):
		return schema.NewDefinitionError(c.model, name, "field name cannot contain a dot")
	case name == schema.IdentityField || name == schema.VersionField:
		return schema.NewDefinitionError(c.model, name, fmt.Sprintf("field name %q is reserved", name))
	case c.opts.TimestampsEnabled() && (name == schema.CreatedAtField || name == schema.UpdatedAtField):
		return schema.NewDefinitionError(c.model, name, fmt.Sprintf("field name %q is reserved by timestamps; disable timestamps to declare it", name))
	}
	if _, ok := seen[name]; ok {
		return schema.NewDefinitionError(c.model, name, "field redeclared")
	}
	return nil
}

// node normalizes a single entry into its typed node.
func (c *compiler) node(name string, e schema.Entry) (*schema.Node, error) {
	switch e := e.(type) {
	case *schema.TokenEntry:
		return c.token(name, e.Token())
	case *schema.FieldEntry:
		desc := e.Builder().Descriptor()
		desc.Name = name
		if err := c.checkDescriptor(desc); err != nil {
			return nil, err
		}
		c.infer(name, desc)
		return c.leaf(name, desc), nil
	case *schema.ObjectEntry:
		if len(e.Entries()) == 0 {
			return nil, schema.NewDefinitionError(c.model, name, "embedded object must declare at least one field")
		}
		fields, err := c.fields(e.Entries())
		if err != nil {
			return nil, err
		}
		return &schema.Node{
			Name: name,
			Kind: schema.KindObject,
			Tree: &schema.Tree{Name: name, Fields: fields},
		}, nil
	case *schema.ListEntry:
		elem, err := c.node(name, e.Elem())
		if err != nil {
			return nil, err
		}
		if elem.Kind == schema.KindList {
			return nil, schema.NewDefinitionError(c.model, name, "lists nest one level only")
		}
		return &schema.Node{Name: name, Kind: schema.KindList, Elem: elem}, nil
	case *schema.RefEntry:
		return c.relation(name, e.Model(), false, false)
	default:
		return nil, schema.NewDefinitionError(c.model, name, fmt.Sprintf("unsupported entry type %T", e))
	}
}

// token resolves a shorthand token. Unknown tokens fall back to a
// plain string descriptor and are recorded as warnings instead of
// aborting the compilation.
func (c *compiler) token(name, tok string) (*schema.Node, error) {
	if rest, ok := strings.CutPrefix(tok, RelationPrefix); ok {
		model, required, unique := cutMarkers(rest)
		return c.relation(name, model, required, unique)
	}
	desc, ok := token.Lookup(tok)
	if !ok {
		c.warnings = append(c.warnings, schema.Warning{
			Field:  name,
			Token:  tok,
			Reason: "unknown token, falling back to plain string",
		})
		desc = token.Fallback()
	}
	desc.Name = name
	c.infer(name, desc)
	return c.leaf(name, desc), nil
}

// leaf wraps a descriptor in a node, lifting the Repeated marker into
// a list node around the element.
func (c *compiler) leaf(name string, desc *field.Descriptor) *schema.Node {
	if desc.Repeated {
		elem := desc.Clone()
		elem.Repeated = false
		return &schema.Node{
			Name: name,
			Kind: schema.KindList,
			Elem: &schema.Node{Name: name, Kind: schema.KindLeaf, Desc: elem},
		}
	}
	return &schema.Node{Name: name, Kind: schema.KindLeaf, Desc: desc}
}

func (c *compiler) relation(name, model string, required, unique bool) (*schema.Node, error) {
	if model == "" {
		return nil, schema.NewDefinitionError(c.model, name, "relation target model cannot be empty")
	}
	b := field.ObjectID(name).Ref(model)
	if required {
		b.Required()
	}
	if unique {
		b.Unique()
	}
	desc := b.Descriptor()
	if desc.Err != nil {
		return nil, schema.WrapDefinitionError(c.model, name, desc.Err)
	}
	return &schema.Node{Name: name, Kind: schema.KindRef, Ref: model, Desc: desc}, nil
}

// checkDescriptor rejects builder misuse at compile time rather than
// at first write.
func (c *compiler) checkDescriptor(d *field.Descriptor) error {
	switch {
	case d.Err != nil:
		return schema.WrapDefinitionError(c.model, d.Name, d.Err)
	case !d.Type.Valid():
		return schema.NewDefinitionError(c.model, d.Name, "invalid field type")
	case d.Unique && d.HasDefault() && reflect.ValueOf(d.Default).Kind() != reflect.Func:
		return schema.NewDefinitionError(c.model, d.Name, "unique field cannot have a static default value")
	case (d.Min != nil || d.Max != nil) && !d.Type.Numeric():
		return schema.NewDefinitionError(c.model, d.Name, "min/max bounds require a numeric field")
	case (d.MinLen != nil || d.MaxLen != nil || d.Match != nil) && !d.Type.Text():
		return schema.NewDefinitionError(c.model, d.Name, "length and pattern constraints require a string field")
	}
	return nil
}

// infer fills constraint gaps from the field name and shape. Explicit
// settings always win; inference only touches unset tri-state flags,
// missing patterns, and enums without a custom validator.
func (c *compiler) infer(name string, d *field.Descriptor) {
	if d.Type.Text() {
		if emailLike(name) {
			if d.Lowercase == nil {
				d.Lowercase = schema.Bool(true)
			}
			if d.Match == nil {
				d.Match = token.Email
			}
		}
		if d.Trim == nil {
			d.Trim = schema.Bool(true)
		}
	}
	if len(d.Enums) > 0 && len(d.Validators) == 0 {
		d.Validators = append(d.Validators, enumValidator(d.Name, d.Enums))
	}
}

func enumValidator(name string, allowed []string) field.Validator {
	values := append([]string(nil), allowed...)
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string, got %T", name, v)
		}
		for _, a := range values {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of: %s", name, strings.Join(values, ", "))
	}
}

func emailLike(name string) bool {
	return strings.Contains(strings.ToLower(name), "email")
}

// cutMarkers strips the trailing requiredness markers from a relation
// token body, returning the bare model name.
func cutMarkers(s string) (model string, required, unique bool) {
	switch {
	case strings.HasSuffix(s, "!!"):
		return s[:len(s)-2], true, true
	case strings.HasSuffix(s, "!"):
		return s[:len(s)-1], true, false
	case strings.HasSuffix(s, "?"):
		return s[:len(s)-1], false, false
	default:
		return s, false, false
	}
}
