// Package schemafile loads model declarations from YAML descriptors.
//
// A descriptor file holds one model per YAML document:
//
//	model: User
//	collection: people
//	options:
//	  timestamps: true
//	  serializeIdAs: id
//	fields:
//	  name: string!
//	  email: email!!
//	  profile:
//	    bio: string
//	  tags:
//	    list: string
//	  manager:
//	    ref: User
//
// Field declarations keep their file order. A scalar value is a
// shorthand token, a mapping with a ref key is a relation, a mapping
// with a list key wraps its element, and any other mapping is an
// embedded sub-document. Malformed descriptors surface as definition
// errors naming the model, field and line.
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/developer-rs5/easy-mongoo/schema"

	"gopkg.in/yaml.v3"
)

// A Model is one parsed declaration, ready for registration.
type Model struct {
	Name    string
	Entries []schema.Entry
	Options schema.Options
}

// Load parses every model declared in the file at path.
func Load(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read %s: %w", path, err)
	}
	models, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("schemafile: %s: %w", path, err)
	}
	return models, nil
}

// LoadDir parses every .yml and .yaml descriptor in dir, in file-name
// order.
func LoadDir(dir string) ([]Model, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yml", ".yaml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	var models []Model
	for _, p := range paths {
		ms, err := Load(p)
		if err != nil {
			return nil, err
		}
		models = append(models, ms...)
	}
	return models, nil
}

// Parse reads model declarations from r, one per YAML document.
func Parse(r io.Reader) ([]Model, error) {
	dec := yaml.NewDecoder(r)
	var models []Model
	for {
		var root yaml.Node
		err := dec.Decode(&root)
		if errors.Is(err, io.EOF) {
			return models, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		m, err := parseModel(&root)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
}

// ParseBytes is Parse over an in-memory descriptor.
func ParseBytes(data []byte) ([]Model, error) {
	return Parse(bytes.NewReader(data))
}

func parseModel(root *yaml.Node) (Model, error) {
	doc := root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) != 1 {
			return Model{}, errors.New("parse yaml: empty document")
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return Model{}, schema.NewDefinitionError("", "", "descriptor must be a mapping")
	}

	var (
		m      Model
		fields *yaml.Node
		opts   *yaml.Node
	)
	for i := 0; i < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		switch key.Value {
		case "model":
			m.Name = val.Value
		case "collection":
			m.Options.Collection = val.Value
		case "options":
			opts = val
		case "fields":
			fields = val
		default:
			return Model{}, schema.NewDefinitionError(m.Name, "",
				fmt.Sprintf("unknown descriptor key %q (line %d)", key.Value, key.Line))
		}
	}
	if m.Name == "" {
		return Model{}, schema.NewDefinitionError("", "", "descriptor is missing the model name")
	}
	if opts != nil {
		if err := parseOptions(m.Name, opts, &m.Options); err != nil {
			return Model{}, err
		}
	}
	if fields == nil {
		return Model{}, schema.NewDefinitionError(m.Name, "", "descriptor declares no fields")
	}
	entries, err := parseFields(m.Name, fields)
	if err != nil {
		return Model{}, err
	}
	m.Entries = entries
	return m, nil
}

func parseOptions(model string, n *yaml.Node, out *schema.Options) error {
	if n.Kind != yaml.MappingNode {
		return schema.NewDefinitionError(model, "",
			fmt.Sprintf("options must be a mapping (line %d)", n.Line))
	}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "timestamps":
			b, err := boolValue(val)
			if err != nil {
				return schema.NewDefinitionError(model, "", "timestamps: "+err.Error())
			}
			out.Timestamps = schema.Bool(b)
		case "stripInternal":
			b, err := boolValue(val)
			if err != nil {
				return schema.NewDefinitionError(model, "", "stripInternal: "+err.Error())
			}
			out.StripInternalFields = schema.Bool(b)
		case "serializeIdAs":
			out.SerializeIdentityAs = val.Value
		case "collection":
			out.Collection = val.Value
		default:
			return schema.NewDefinitionError(model, "",
				fmt.Sprintf("unknown option %q (line %d)", key.Value, key.Line))
		}
	}
	return nil
}

func boolValue(n *yaml.Node) (bool, error) {
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, fmt.Errorf("expected a boolean, got %q (line %d)", n.Value, n.Line)
	}
	return b, nil
}

// parseFields walks a fields mapping in file order.
func parseFields(model string, n *yaml.Node) ([]schema.Entry, error) {
	if n.Kind != yaml.MappingNode {
		return nil, schema.NewDefinitionError(model, "",
			fmt.Sprintf("fields must be a mapping (line %d)", n.Line))
	}
	entries := make([]schema.Entry, 0, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		e, err := parseEntry(model, key.Value, val)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseEntry(model, name string, val *yaml.Node) (schema.Entry, error) {
	switch val.Kind {
	case yaml.ScalarNode:
		return schema.Token(name, val.Value), nil
	case yaml.MappingNode:
		if sub := mappingValue(val, "ref"); sub != nil {
			if sub.Kind != yaml.ScalarNode || sub.Value == "" {
				return nil, schema.NewDefinitionError(model, name,
					fmt.Sprintf("ref needs a model name (line %d)", sub.Line))
			}
			return schema.Ref(name, sub.Value), nil
		}
		if sub := mappingValue(val, "list"); sub != nil {
			elem, err := parseEntry(model, name, sub)
			if err != nil {
				return nil, err
			}
			return schema.List(name, elem), nil
		}
		entries, err := parseFields(model, val)
		if err != nil {
			return nil, err
		}
		return schema.Object(name, entries...), nil
	default:
		return nil, schema.NewDefinitionError(model, name,
			fmt.Sprintf("unsupported field declaration (line %d)", val.Line))
	}
}

// mappingValue returns the value node for key when the mapping holds
// exactly that one key, which is how ref and list wrappers are told
// apart from embedded sub-documents.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if len(n.Content) != 2 {
		return nil
	}
	if n.Content[0].Value != key {
		return nil
	}
	return n.Content[1]
}
