package gen

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"
	"github.com/developer-rs5/easy-mongoo/synth"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titler   = cases.Title(language.English, cases.NoLower)
	singular = inflect.NewDefaultRuleset()
)

// exported turns a document field name into an exported Go identifier:
// separators split words, each word keeps its inner casing.
func exported(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(titler.String(p))
	}
	return b.String()
}

// subDef is a nested document struct queued for rendering after the
// model struct.
type subDef struct {
	name string
	tree *schema.Tree
}

// Model renders one tree into a complete generated file: constants,
// the document struct, nested document structs, and methods for the
// virtuals the synthesizer derives on this tree.
func (g *Generator) Model(t *schema.Tree) (*jen.File, error) {
	if t == nil {
		return nil, errors.New("gen: nil tree")
	}
	model := exported(t.Name)
	if model == "" {
		return nil, errors.New("gen: tree has no name")
	}
	f := g.newFile()

	genConstants(f, model, t)
	genEnums(f, model, t)

	var subs []subDef
	fields, err := structFields(model, t, &subs)
	if err != nil {
		return nil, err
	}
	f.Commentf("%s is the %s document, stored in the %q collection.", model, t.Name, t.Collection)
	f.Type().Id(model).Struct(fields...)

	// Nested structs land after the model in encounter order; each can
	// queue deeper ones.
	for i := 0; i < len(subs); i++ {
		sub := subs[i]
		subFields, err := structFields(sub.name, sub.tree, &subs)
		if err != nil {
			return nil, err
		}
		f.Commentf("%s is the %s document embedded in %s.", sub.name, sub.tree.Name, model)
		f.Type().Id(sub.name).Struct(subFields...)
	}

	genVirtuals(f, model, t)
	return f, nil
}

func genConstants(f *jen.File, model string, t *schema.Tree) {
	defs := []jen.Code{
		jen.Id(model + "Collection").Op("=").Lit(t.Collection),
		jen.Line(),
		jen.Id(model + "FieldID").Op("=").Lit(t.Identity),
	}
	for _, n := range t.Fields {
		defs = append(defs, jen.Id(model+"Field"+exported(n.Name)).Op("=").Lit(n.Name))
	}
	if t.Timestamps != nil {
		defs = append(defs,
			jen.Id(model+"Field"+exported(t.Timestamps.CreatedAt)).Op("=").Lit(t.Timestamps.CreatedAt),
			jen.Id(model+"Field"+exported(t.Timestamps.UpdatedAt)).Op("=").Lit(t.Timestamps.UpdatedAt),
		)
	}
	f.Commentf("Collection and field names of the %s model.", model)
	f.Const().Defs(defs...)
}

// genEnums emits a defined string type plus value constants for every
// top-level enum field.
func genEnums(f *jen.File, model string, t *schema.Tree) {
	for _, n := range t.Fields {
		if !n.Leaf() || n.Desc == nil || len(n.Desc.Enums) == 0 {
			continue
		}
		typ := model + exported(n.Name)
		f.Commentf("%s is the closed value set of the %s field.", typ, n.Name)
		f.Type().Id(typ).String()
		var defs []jen.Code
		for _, v := range n.Desc.Enums {
			defs = append(defs, jen.Id(typ+exported(v)).Id(typ).Op("=").Lit(v))
		}
		f.Const().Defs(defs...)
	}
}

func structFields(model string, t *schema.Tree, subs *[]subDef) ([]jen.Code, error) {
	var fields []jen.Code
	if t.Identity != "" {
		fields = append(fields, jen.Id("ID").String().Tag(map[string]string{"json": t.Identity}))
	}
	for _, n := range t.Fields {
		code, err := structField(model, n, subs)
		if err != nil {
			return nil, err
		}
		fields = append(fields, code)
	}
	if t.Timestamps != nil {
		fields = append(fields,
			jen.Id(exported(t.Timestamps.CreatedAt)).Qual("time", "Time").Tag(map[string]string{"json": t.Timestamps.CreatedAt}),
			jen.Id(exported(t.Timestamps.UpdatedAt)).Qual("time", "Time").Tag(map[string]string{"json": t.Timestamps.UpdatedAt}),
		)
	}
	return fields, nil
}

func structField(model string, n *schema.Node, subs *[]subDef) (jen.Code, error) {
	name := exported(n.Name)
	tag := map[string]string{"json": n.Name + ",omitempty"}
	stmt := jen.Id(name)

	switch n.Kind {
	case schema.KindLeaf:
		d := n.Desc
		if d == nil {
			return nil, fmt.Errorf("gen: field %q has no descriptor", n.Name)
		}
		if d.Required {
			tag["json"] = n.Name
		}
		if !d.Required && pointable(d.Type) {
			stmt.Op("*").Add(baseType(model, n))
		} else {
			stmt.Add(baseType(model, n))
		}
	case schema.KindRef:
		if n.Desc != nil && n.Desc.Required {
			tag["json"] = n.Name
		}
		stmt.String()
	case schema.KindObject:
		sub := model + exported(n.Name)
		*subs = append(*subs, subDef{name: sub, tree: n.Tree})
		stmt.Op("*").Id(sub)
	case schema.KindList:
		elem, err := elemType(model, n.Name, n.Elem, subs)
		if err != nil {
			return nil, err
		}
		stmt.Index().Add(elem)
	default:
		return nil, fmt.Errorf("gen: field %q has unsupported kind %s", n.Name, n.Kind)
	}
	return stmt.Tag(tag), nil
}

func elemType(model, listName string, elem *schema.Node, subs *[]subDef) (jen.Code, error) {
	switch elem.Kind {
	case schema.KindLeaf:
		if elem.Desc == nil {
			return nil, fmt.Errorf("gen: list %q element has no descriptor", listName)
		}
		return baseType(model, elem), nil
	case schema.KindRef:
		return jen.String(), nil
	case schema.KindObject:
		sub := model + exported(singular.Singularize(listName))
		*subs = append(*subs, subDef{name: sub, tree: elem.Tree})
		return jen.Id(sub), nil
	case schema.KindList:
		inner, err := elemType(model, listName, elem.Elem, subs)
		if err != nil {
			return nil, err
		}
		return jen.Index().Add(inner), nil
	}
	return nil, fmt.Errorf("gen: list %q element has unsupported kind %s", listName, elem.Kind)
}

// baseType maps a leaf descriptor to its Go type. Enum fields use the
// defined type genEnums emits for them.
func baseType(model string, n *schema.Node) jen.Code {
	d := n.Desc
	if len(d.Enums) > 0 {
		return jen.Id(model + exported(n.Name))
	}
	switch d.Type {
	case field.TypeString:
		return jen.String()
	case field.TypeNumber:
		return jen.Float64()
	case field.TypeBool:
		return jen.Bool()
	case field.TypeTime:
		return jen.Qual("time", "Time")
	case field.TypeBytes:
		return jen.Index().Byte()
	case field.TypeDecimal:
		return jen.String()
	case field.TypeMap:
		return jen.Map(jen.String()).Id("any")
	case field.TypeObjectID:
		return jen.String()
	}
	return jen.Id("any")
}

// pointable reports whether an optional field of this type renders as
// a pointer. Slices, maps and interfaces already distinguish absent
// from zero.
func pointable(t field.Type) bool {
	switch t {
	case field.TypeString, field.TypeNumber, field.TypeBool, field.TypeTime, field.TypeDecimal, field.TypeObjectID:
		return true
	}
	return false
}

func genVirtuals(f *jen.File, model string, t *schema.Tree) {
	sources := synth.VirtualSources(t)
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := sources[name]
		switch {
		case name == "fullName":
			genFullName(f, model, t, src[0], src[1])
		case name == "age":
			genAge(f, model, t, src[0])
		case strings.HasSuffix(name, "Formatted"):
			genFormatted(f, model, name, src[0])
		}
	}
}

func genFullName(f *jen.File, model string, t *schema.Tree, first, last string) {
	pre, firstExpr := stringSource(t, first)
	pre2, lastExpr := stringSource(t, last)
	body := append(pre, pre2...)
	body = append(body, jen.Return(jen.Qual("strings", "TrimSpace").Call(
		firstExpr.Op("+").Lit(" ").Op("+").Add(lastExpr),
	)))
	f.Commentf("FullName joins the %s and %s fields.", first, last)
	f.Func().Params(jen.Id("m").Op("*").Id(model)).Id("FullName").Params().String().Block(body...)
}

// stringSource yields an expression for a string field, with a deref
// guard when the field renders as a pointer.
func stringSource(t *schema.Tree, name string) ([]jen.Code, *jen.Statement) {
	n := t.Lookup(name)
	goName := exported(name)
	if n != nil && n.Desc != nil && !n.Desc.Required {
		local := "_" + name
		pre := []jen.Code{
			jen.Var().Id(local).String(),
			jen.If(jen.Id("m").Dot(goName).Op("!=").Nil()).Block(
				jen.Id(local).Op("=").Op("*").Id("m").Dot(goName),
			),
		}
		return pre, jen.Id(local)
	}
	return nil, jen.Id("m").Dot(goName)
}

func genAge(f *jen.File, model string, t *schema.Tree, birth string) {
	goName := exported(birth)
	n := t.Lookup(birth)
	var body []jen.Code
	arg := jen.Id("m").Dot(goName)
	if n != nil && n.Desc != nil && !n.Desc.Required {
		body = append(body, jen.If(jen.Id("m").Dot(goName).Op("==").Nil()).Block(
			jen.Return(jen.Lit(0)),
		))
		arg = jen.Op("*").Id("m").Dot(goName)
	}
	body = append(body, jen.Return(jen.Qual(modulePkg+"/synth", "AgeAt").Call(
		arg, jen.Qual("time", "Now").Call(),
	)))
	f.Commentf("Age computes whole years elapsed since the %s field.", birth)
	f.Func().Params(jen.Id("m").Op("*").Id(model)).Id("Age").Params().Int().Block(body...)
}

func genFormatted(f *jen.File, model, name, source string) {
	f.Commentf("%s renders the %s field for display.", exported(name), source)
	f.Func().Params(jen.Id("m").Op("*").Id(model)).Id(exported(name)).Params().String().Block(
		jen.Return(jen.Id("m").Dot(exported(source)).Dot("Format").Call(
			jen.Qual(modulePkg+"/synth", "DateDisplayFormat"),
		)),
	)
}
