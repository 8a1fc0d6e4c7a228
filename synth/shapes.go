package synth

import (
	"strings"

	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"
)

// shapes holds the result of one scan over a tree's top-level fields:
// for every shape the rule battery looks for, the name of the first
// declared field matching it, or the empty string.
type shapes struct {
	firstName   string
	lastName    string
	birthDate   string
	name        string
	title       string
	description string
	status      string
	category    string
	price       string
	owner       string
	expiry      string
	location    string
	activeFlag  string
	deletedFlag string
	password    string
	views       string
	uniques     []string
}

var shapeKeys = map[string][]string{
	"firstName":   {"firstname", "fname", "givenname"},
	"lastName":    {"lastname", "lname", "surname", "familyname"},
	"birthDate":   {"birthdate", "dob", "dateofbirth", "birthday"},
	"name":        {"name"},
	"title":       {"title"},
	"description": {"description"},
	"status":      {"status", "state"},
	"category":    {"category"},
	"price":       {"price", "amount", "cost"},
	"owner":       {"owner", "user", "author", "createdby"},
	"expiry":      {"expiresat", "expireat", "expiry", "expires", "validuntil"},
	"location":    {"location", "coordinates"},
	"activeFlag":  {"isactive", "active", "enabled"},
	"deletedFlag": {"isdeleted", "deleted"},
	"password":    {"password", "passphrase", "pwd"},
	"views":       {"views", "viewcount", "viewscount"},
}

// normalizeKey folds a field name for shape matching: lowercased, with
// underscores and hyphens removed, so "first_name", "FirstName" and
// "firstname" all match the same shape.
func normalizeKey(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

func matchesShape(shape, fieldName string) bool {
	key := normalizeKey(fieldName)
	for _, k := range shapeKeys[shape] {
		if key == k {
			return true
		}
	}
	return false
}

// detect scans the tree's top-level fields in declaration order and
// records the first field matching each shape. Type guards keep the
// shapes honest: a number named "birthdate" is not a birth date.
func detect(t *schema.Tree) shapes {
	var s shapes
	for _, n := range t.Fields {
		d := n.Desc
		set := func(dst *string, shape string, typeOK bool) {
			if *dst == "" && typeOK && matchesShape(shape, n.Name) {
				*dst = n.Name
			}
		}
		text := n.Kind == schema.KindLeaf && d != nil && d.Type.Text()
		date := n.Kind == schema.KindLeaf && d != nil && d.Type == field.TypeTime
		number := n.Kind == schema.KindLeaf && d != nil && d.Type.Numeric()
		boolean := n.Kind == schema.KindLeaf && d != nil && d.Type == field.TypeBool
		ref := n.Kind == schema.KindRef || (d != nil && d.Type == field.TypeObjectID)

		set(&s.firstName, "firstName", text)
		set(&s.lastName, "lastName", text)
		set(&s.birthDate, "birthDate", date)
		set(&s.name, "name", text)
		set(&s.title, "title", text)
		set(&s.description, "description", text)
		set(&s.status, "status", text)
		set(&s.category, "category", text)
		set(&s.price, "price", number)
		set(&s.owner, "owner", ref)
		set(&s.expiry, "expiry", date)
		set(&s.location, "location", n.Kind == schema.KindLeaf || n.Kind == schema.KindObject)
		set(&s.activeFlag, "activeFlag", boolean)
		set(&s.deletedFlag, "deletedFlag", boolean)
		set(&s.password, "password", text)
		set(&s.views, "views", number)

		if n.Leaf() && d != nil && d.Unique {
			s.uniques = append(s.uniques, n.Name)
		}
	}
	return s
}

// VirtualSources reports, by virtual name, the declared fields each
// synthesized virtual reads on this tree. Code generation uses it to
// emit concrete accessor methods instead of opaque lookups.
func VirtualSources(t *schema.Tree) map[string][]string {
	s := detect(t)
	out := make(map[string][]string)
	if s.firstName != "" && s.lastName != "" && virtualFree(t, "fullName") {
		out["fullName"] = []string{s.firstName, s.lastName}
	}
	if s.birthDate != "" && virtualFree(t, "age") {
		out["age"] = []string{s.birthDate}
	}
	if t.Timestamps != nil {
		for _, f := range []string{t.Timestamps.CreatedAt, t.Timestamps.UpdatedAt} {
			if virtualFree(t, f+"Formatted") {
				out[f+"Formatted"] = []string{f}
			}
		}
	}
	return out
}

// slugSource returns the field a slug should derive from, preferring
// name over title.
func (s shapes) slugSource() string {
	if s.name != "" {
		return s.name
	}
	return s.title
}

// textFields returns the text-index candidates present on the tree, in
// weight order.
func (s shapes) textFields() []string {
	var out []string
	for _, f := range []string{s.name, s.title, s.description} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
