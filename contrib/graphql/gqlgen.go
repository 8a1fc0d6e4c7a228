package graphql

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/developer-rs5/easy-mongoo/schema"

	gql "github.com/99designs/gqlgen/graphql"
	"gopkg.in/yaml.v3"
)

// Config is the subset of gqlgen.yml this package reads and updates
// when binding generated models into a gqlgen project.
type Config struct {
	SchemaFilename StringList              `yaml:"schema,omitempty"`
	Exec           ExecConfig              `yaml:"exec,omitempty"`
	Model          ModelConfig             `yaml:"model,omitempty"`
	Resolver       ResolverConfig          `yaml:"resolver,omitempty"`
	Autobind       []string                `yaml:"autobind,omitempty"`
	Models         map[string]TypeMapEntry `yaml:"models,omitempty"`
}

// ExecConfig configures the generated executor.
type ExecConfig struct {
	Filename string `yaml:"filename,omitempty"`
	Package  string `yaml:"package,omitempty"`
}

// ModelConfig configures the generated models.
type ModelConfig struct {
	Filename string `yaml:"filename,omitempty"`
	Package  string `yaml:"package,omitempty"`
}

// ResolverConfig configures resolver generation.
type ResolverConfig struct {
	Filename string `yaml:"filename,omitempty"`
	Package  string `yaml:"package,omitempty"`
	Layout   string `yaml:"layout,omitempty"`
	DirName  string `yaml:"dir,omitempty"`
}

// TypeMapEntry binds one GraphQL type to Go models.
type TypeMapEntry struct {
	Model StringList `yaml:"model,omitempty"`
}

// StringList is a YAML value that may be a single string or a list.
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// LoadConfig reads a gqlgen.yml. A missing file yields an empty
// config, so injection can bootstrap a project.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Models: make(map[string]TypeMapEntry)}, nil
		}
		return nil, fmt.Errorf("graphql: read gqlgen config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("graphql: parse gqlgen config: %w", err)
	}
	if cfg.Models == nil {
		cfg.Models = make(map[string]TypeMapEntry)
	}
	return &cfg, nil
}

// Save writes the config back as gqlgen.yml.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("graphql: marshal gqlgen config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("graphql: create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// AddSchemaPath adds a schema path unless already present.
func (c *Config) AddSchemaPath(path string) {
	if !slices.Contains(c.SchemaFilename, path) {
		c.SchemaFilename = append(c.SchemaFilename, path)
	}
}

// AddAutobind adds a package to the autobind list unless already
// present.
func (c *Config) AddAutobind(pkg string) {
	if !slices.Contains(c.Autobind, pkg) {
		c.Autobind = append(c.Autobind, pkg)
	}
}

// SetModel appends a Go binding for a GraphQL type.
func (c *Config) SetModel(typeName, modelPath string) {
	if c.Models == nil {
		c.Models = make(map[string]TypeMapEntry)
	}
	entry := c.Models[typeName]
	if !slices.Contains(entry.Model, modelPath) {
		entry.Model = append(entry.Model, modelPath)
	}
	c.Models[typeName] = entry
}

// InjectModelBindings points the config at the rendered schema and the
// generated models package, and binds the scalars the schema declares.
// Object types bind through autobind; only the scalars need explicit
// entries.
func (c *Config) InjectModelBindings(modelsPkg, schemaPath string) {
	if schemaPath != "" {
		c.AddSchemaPath(schemaPath)
	}
	if modelsPkg != "" {
		c.AddAutobind(modelsPkg)
	}
	c.SetModel("Time", "github.com/99designs/gqlgen/graphql.Time")
	c.SetModel("JSON", "github.com/99designs/gqlgen/graphql.Map")
	c.SetModel("Document", "github.com/developer-rs5/easy-mongoo/contrib/graphql.Document")
}

// Document aliases the runtime document type so gqlgen resolves its
// scalar marshalers next to the bound name.
type Document = schema.Document

// MarshalDocument renders a document as a JSON scalar value.
func MarshalDocument(d Document) gql.Marshaler {
	return gql.WriterFunc(func(w io.Writer) {
		if err := json.NewEncoder(w).Encode(d); err != nil {
			panic(err)
		}
	})
}

// UnmarshalDocument accepts a JSON object as a document.
func UnmarshalDocument(v any) (Document, error) {
	switch v := v.(type) {
	case map[string]any:
		return Document(v), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("graphql: %T is not a document", v)
	}
}
