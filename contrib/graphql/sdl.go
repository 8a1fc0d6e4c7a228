// Package graphql renders registered models into a GraphQL schema and
// binds them into a gqlgen project.
package graphql

import (
	"fmt"
	"os"
	"strings"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"
	"github.com/developer-rs5/easy-mongoo/synth"

	"github.com/go-openapi/inflect"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

var rules = inflect.NewDefaultRuleset()

// A SchemaGenerator renders every model registered on a registry into
// one SDL document: object types, enums, a Query root with by-id and
// list fields per model, and the Time/JSON scalars the field types
// need.
type SchemaGenerator struct {
	reg *mongoo.Registry
}

// NewSchemaGenerator returns a generator over the registry's models.
func NewSchemaGenerator(reg *mongoo.Registry) *SchemaGenerator {
	return &SchemaGenerator{reg: reg}
}

// Schema renders the SDL document and validates it with gqlparser
// before returning it.
func (g *SchemaGenerator) Schema() (string, error) {
	names := g.reg.Models()
	if len(names) == 0 {
		return "", fmt.Errorf("graphql: registry has no models")
	}
	var b strings.Builder
	r := renderer{out: &b}
	for _, name := range names {
		m, err := g.reg.Get(name)
		if err != nil {
			return "", err
		}
		r.model(m.Tree(), m.Features())
	}
	r.queryRoot()
	r.scalars()

	sdl := b.String()
	if _, err := gqlparser.LoadSchema(&ast.Source{Name: "mongoo.graphql", Input: sdl}); err != nil {
		return "", fmt.Errorf("graphql: generated schema is invalid: %w", err)
	}
	return sdl, nil
}

// Write renders the schema and writes it to path.
func (g *SchemaGenerator) Write(path string) error {
	sdl, err := g.Schema()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sdl), 0o644)
}

// renderer accumulates SDL text plus the deferred sections that depend
// on what the model walk encountered.
type renderer struct {
	out      *strings.Builder
	models   []string // exported model type names, walk order
	enums    []string // rendered enum blocks
	nested   []string // rendered embedded types
	needTime bool
	needJSON bool
}

func (r *renderer) model(t *schema.Tree, features *synth.FeatureSet) {
	name := typeName(t.Name)
	r.models = append(r.models, name)

	fmt.Fprintf(r.out, "type %s {\n", name)
	fmt.Fprintf(r.out, "  %s: ID!\n", t.Options.IdentityAlias())
	r.fields(name, t)
	r.virtuals(t, features)
	if t.Timestamps != nil {
		r.needTime = true
		fmt.Fprintf(r.out, "  %s: Time!\n", t.Timestamps.CreatedAt)
		fmt.Fprintf(r.out, "  %s: Time!\n", t.Timestamps.UpdatedAt)
	}
	r.out.WriteString("}\n\n")

	for _, block := range r.nested {
		r.out.WriteString(block)
	}
	r.nested = r.nested[:0]
	for _, block := range r.enums {
		r.out.WriteString(block)
	}
	r.enums = r.enums[:0]
}

func (r *renderer) fields(owner string, t *schema.Tree) {
	for _, n := range t.Fields {
		if n.Leaf() && n.Desc != nil && n.Desc.Sensitive {
			continue
		}
		fmt.Fprintf(r.out, "  %s: %s\n", n.Name, r.fieldType(owner, n))
	}
}

func (r *renderer) fieldType(owner string, n *schema.Node) string {
	switch n.Kind {
	case schema.KindLeaf:
		typ := r.leafType(owner, n)
		if n.Desc.Required {
			typ += "!"
		}
		return typ
	case schema.KindRef:
		if n.Desc != nil && n.Desc.Required {
			return "ID!"
		}
		return "ID"
	case schema.KindObject:
		sub := owner + typeName(n.Name)
		r.nestedType(sub, n.Tree)
		return sub
	case schema.KindList:
		return "[" + r.elemType(owner, n.Name, n.Elem) + "]"
	}
	return "String"
}

func (r *renderer) elemType(owner, listName string, elem *schema.Node) string {
	switch elem.Kind {
	case schema.KindLeaf:
		return r.leafType(owner, elem)
	case schema.KindRef:
		return "ID"
	case schema.KindObject:
		sub := owner + typeName(rules.Singularize(listName))
		r.nestedType(sub, elem.Tree)
		return sub
	case schema.KindList:
		return "[" + r.elemType(owner, listName, elem.Elem) + "]"
	}
	return "String"
}

func (r *renderer) leafType(owner string, n *schema.Node) string {
	d := n.Desc
	if len(d.Enums) > 0 {
		name := owner + typeName(n.Name)
		var b strings.Builder
		fmt.Fprintf(&b, "enum %s {\n", name)
		for _, v := range d.Enums {
			fmt.Fprintf(&b, "  %s\n", enumValue(v))
		}
		b.WriteString("}\n\n")
		r.enums = append(r.enums, b.String())
		return name
	}
	switch d.Type {
	case field.TypeString, field.TypeBytes, field.TypeDecimal:
		return "String"
	case field.TypeNumber:
		return "Float"
	case field.TypeBool:
		return "Boolean"
	case field.TypeTime:
		r.needTime = true
		return "Time"
	case field.TypeMap, field.TypeMixed:
		r.needJSON = true
		return "JSON"
	case field.TypeObjectID:
		return "ID"
	}
	return "String"
}

func (r *renderer) nestedType(name string, t *schema.Tree) {
	var b strings.Builder
	sub := renderer{out: &b}
	fmt.Fprintf(&b, "type %s {\n", name)
	sub.fields(name, t)
	b.WriteString("}\n\n")
	r.nested = append(r.nested, b.String())
	r.nested = append(r.nested, sub.nested...)
	r.enums = append(r.enums, sub.enums...)
	r.needTime = r.needTime || sub.needTime
	r.needJSON = r.needJSON || sub.needJSON
}

// virtuals renders the synthesized computed fields. The identity alias
// is already the ID field; age is the only numeric virtual.
func (r *renderer) virtuals(t *schema.Tree, features *synth.FeatureSet) {
	if features == nil {
		return
	}
	for _, v := range features.Virtuals {
		if v.Name == t.Options.IdentityAlias() {
			continue
		}
		typ := "String"
		if v.Name == "age" {
			typ = "Int"
		}
		fmt.Fprintf(r.out, "  %s: %s\n", v.Name, typ)
	}
}

func (r *renderer) queryRoot() {
	r.out.WriteString("type Query {\n")
	for _, name := range r.models {
		one := lowerFirst(name)
		many := rules.Pluralize(one)
		if many == one {
			many = one + "List"
		}
		fmt.Fprintf(r.out, "  %s(id: ID!): %s\n", one, name)
		fmt.Fprintf(r.out, "  %s: [%s]\n", many, name)
	}
	r.out.WriteString("}\n\n")
}

func (r *renderer) scalars() {
	if r.needTime {
		r.out.WriteString("scalar Time\n")
	}
	if r.needJSON {
		r.out.WriteString("scalar JSON\n")
	}
}

func typeName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// enumValue folds an enum literal into the GraphQL value grammar:
// uppercased, with every run outside [A-Za-z0-9] collapsed to one
// underscore.
func enumValue(v string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(v) {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" || out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
