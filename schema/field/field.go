package field

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// A Type represents a field's base type in a document schema.
type Type uint8

// Base types supported by the schema grammar.
const (
	TypeInvalid Type = iota
	TypeString
	TypeNumber
	TypeBool
	TypeTime
	TypeBytes
	TypeDecimal
	TypeMap
	TypeMixed
	TypeObjectID
	endTypes
)

var typeNames = [...]string{
	TypeInvalid:  "invalid",
	TypeString:   "string",
	TypeNumber:   "number",
	TypeBool:     "boolean",
	TypeTime:     "date",
	TypeBytes:    "buffer",
	TypeDecimal:  "decimal",
	TypeMap:      "map",
	TypeMixed:    "mixed",
	TypeObjectID: "objectId",
}

// String returns the grammar name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports if the type is a recognized base type.
func (t Type) Valid() bool { return t > TypeInvalid && t < endTypes }

// Numeric reports if the type orders numerically and accepts Min/Max bounds.
func (t Type) Numeric() bool { return t == TypeNumber || t == TypeDecimal }

// Text reports if the type holds free-form text.
func (t Type) Text() bool { return t == TypeString }

// ParseType resolves a base-type name to its Type. It is the fixed lookup
// used when descriptors arrive with type names given as strings, and it
// accepts the common aliases of each base.
func ParseType(name string) (Type, bool) {
	t, ok := parseTypes[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

var parseTypes = map[string]Type{
	"string":   TypeString,
	"text":     TypeString,
	"number":   TypeNumber,
	"int":      TypeNumber,
	"integer":  TypeNumber,
	"float":    TypeNumber,
	"double":   TypeNumber,
	"boolean":  TypeBool,
	"bool":     TypeBool,
	"date":     TypeTime,
	"time":     TypeTime,
	"datetime": TypeTime,
	"buffer":   TypeBytes,
	"binary":   TypeBytes,
	"bytes":    TypeBytes,
	"decimal":  TypeDecimal,
	"map":      TypeMap,
	"object":   TypeMap,
	"mixed":    TypeMixed,
	"any":      TypeMixed,
	"objectid": TypeObjectID,
	"id":       TypeObjectID,
}

// A Validator checks a single field value before it is written.
type Validator func(value any) error

// A Descriptor is the canonical, fully-resolved constraint set for one
// field. Descriptors are built through the fluent builders in this package
// and treated as immutable once a schema is compiled.
//
// Trim and Lowercase are tri-state: nil means the author left them unset,
// letting name-driven inference fill the gap at compile time.
type Descriptor struct {
	Name      string     // field name in the document
	Type      Type       // base type
	Required  bool       // value must be present on create
	Unique    bool       // value must be unique across the collection
	Default   any        // static default value, or a niladic function
	Repeated  bool       // shorthand marker for "list of this descriptor"
	Relation  string     // target model name for objectId references
	Enums     []string   // allowed values, when restricted
	Lowercase *bool      // fold case before store
	Trim      *bool      // trim surrounding whitespace before store
	Match     *regexp.Regexp
	Min, Max  *float64   // numeric bounds
	MinLen    *int       // minimum text length
	MaxLen    *int       // maximum text length
	Sensitive bool       // never serialized or logged
	Immutable bool       // cannot change after create
	Comment   string
	Validators []Validator
	Err        error // first builder misuse, surfaced at compile time
}

// Builder is implemented by every field builder in this package.
type Builder interface {
	Descriptor() *Descriptor
}

func (d *Descriptor) setErr(err error) {
	if d.Err == nil {
		d.Err = err
	}
}

// HasDefault reports if the descriptor carries a default value or a
// default-producing function.
func (d *Descriptor) HasDefault() bool { return d.Default != nil }

// DefaultValue resolves the default, invoking it when it is one of the
// supported niladic function shapes.
func (d *Descriptor) DefaultValue() any {
	switch fn := d.Default.(type) {
	case func() time.Time:
		return fn()
	case func() string:
		return fn()
	case func() any:
		return fn()
	default:
		return d.Default
	}
}

// Clone returns a deep copy of the descriptor. Slices, maps and pointer
// fields are copied so mutating the clone never leaks into the original.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	if d.Enums != nil {
		c.Enums = append([]string(nil), d.Enums...)
	}
	if d.Validators != nil {
		c.Validators = append([]Validator(nil), d.Validators...)
	}
	c.Lowercase = cloneBool(d.Lowercase)
	c.Trim = cloneBool(d.Trim)
	c.Min = cloneFloat(d.Min)
	c.Max = cloneFloat(d.Max)
	c.MinLen = cloneInt(d.MinLen)
	c.MaxLen = cloneInt(d.MaxLen)
	return &c
}

// Equal reports if two descriptors are equal by value. Function-typed
// members (validators, function defaults) compare by presence and count,
// since Go functions have no value identity.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Name != o.Name || d.Type != o.Type || d.Required != o.Required ||
		d.Unique != o.Unique || d.Repeated != o.Repeated || d.Relation != o.Relation ||
		d.Sensitive != o.Sensitive || d.Immutable != o.Immutable || d.Comment != o.Comment {
		return false
	}
	if !equalBool(d.Lowercase, o.Lowercase) || !equalBool(d.Trim, o.Trim) {
		return false
	}
	if !equalFloat(d.Min, o.Min) || !equalFloat(d.Max, o.Max) {
		return false
	}
	if !equalInt(d.MinLen, o.MinLen) || !equalInt(d.MaxLen, o.MaxLen) {
		return false
	}
	if len(d.Enums) != len(o.Enums) {
		return false
	}
	for i := range d.Enums {
		if d.Enums[i] != o.Enums[i] {
			return false
		}
	}
	if (d.Match == nil) != (o.Match == nil) {
		return false
	}
	if d.Match != nil && d.Match.String() != o.Match.String() {
		return false
	}
	if len(d.Validators) != len(o.Validators) {
		return false
	}
	if isFunc(d.Default) != isFunc(o.Default) {
		return false
	}
	if !isFunc(d.Default) && fmt.Sprint(d.Default) != fmt.Sprint(o.Default) {
		return false
	}
	return true
}

// Validate runs the descriptor's built-in constraints and custom
// validators against a single value.
func (d *Descriptor) Validate(v any) error {
	if d.Type.Text() {
		if s, ok := v.(string); ok {
			if d.MinLen != nil && len(s) < *d.MinLen {
				return fmt.Errorf("%s must be at least %d characters", d.Name, *d.MinLen)
			}
			if d.MaxLen != nil && len(s) > *d.MaxLen {
				return fmt.Errorf("%s must be at most %d characters", d.Name, *d.MaxLen)
			}
			if d.Match != nil && !d.Match.MatchString(s) {
				return fmt.Errorf("%s has an invalid format", d.Name)
			}
		}
	}
	if d.Type.Numeric() {
		if f, ok := Float(v); ok {
			if d.Min != nil && f < *d.Min {
				return fmt.Errorf("%s must be at least %v", d.Name, *d.Min)
			}
			if d.Max != nil && f > *d.Max {
				return fmt.Errorf("%s must be at most %v", d.Name, *d.Max)
			}
		}
	}
	for _, fn := range d.Validators {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// Normalize applies the descriptor's canonicalization flags to a value.
// Only text values are rewritten; everything else passes through.
func (d *Descriptor) Normalize(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if d.Trim != nil && *d.Trim {
		s = strings.TrimSpace(s)
	}
	if d.Lowercase != nil && *d.Lowercase {
		s = strings.ToLower(s)
	}
	return s
}

// Float coerces the common numeric representations to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func isFunc(v any) bool {
	switch v.(type) {
	case func() time.Time, func() string, func() any:
		return true
	default:
		return false
	}
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// String returns a new builder for a text field.
func String(name string) *StringBuilder {
	return &StringBuilder{desc: &Descriptor{Name: name, Type: TypeString}}
}

// StringBuilder builds text field descriptors.
type StringBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *StringBuilder) Required() *StringBuilder {
	b.desc.Required = true
	return b
}

// Optional documents that the field may be absent. Fields are optional by
// default, so this carries intent only.
func (b *StringBuilder) Optional() *StringBuilder {
	b.desc.Required = false
	return b
}

// Unique enforces at most one document per value.
func (b *StringBuilder) Unique() *StringBuilder {
	b.desc.Unique = true
	return b
}

// Default sets the value used when the field is absent on create.
func (b *StringBuilder) Default(s string) *StringBuilder {
	b.desc.Default = s
	return b
}

// DefaultFunc sets a function invoked per document for the default value.
func (b *StringBuilder) DefaultFunc(fn func() string) *StringBuilder {
	b.desc.Default = fn
	return b
}

// Lowercase folds the value to lower case before store.
func (b *StringBuilder) Lowercase() *StringBuilder {
	v := true
	b.desc.Lowercase = &v
	return b
}

// Trim removes surrounding whitespace before store.
func (b *StringBuilder) Trim() *StringBuilder {
	v := true
	b.desc.Trim = &v
	return b
}

// NoTrim opts the field out of the trim-by-default inference applied to
// text fields at compile time.
func (b *StringBuilder) NoTrim() *StringBuilder {
	v := false
	b.desc.Trim = &v
	return b
}

// MinLen enforces a minimum value length.
func (b *StringBuilder) MinLen(i int) *StringBuilder {
	if i < 0 {
		b.desc.setErr(fmt.Errorf("field %q: minimum length cannot be negative", b.desc.Name))
		return b
	}
	b.desc.MinLen = &i
	return b
}

// MaxLen enforces a maximum value length.
func (b *StringBuilder) MaxLen(i int) *StringBuilder {
	if i < 0 {
		b.desc.setErr(fmt.Errorf("field %q: maximum length cannot be negative", b.desc.Name))
		return b
	}
	b.desc.MaxLen = &i
	return b
}

// NotEmpty requires a non-empty value.
func (b *StringBuilder) NotEmpty() *StringBuilder {
	return b.MinLen(1)
}

// Match validates values against a pattern.
func (b *StringBuilder) Match(re *regexp.Regexp) *StringBuilder {
	if re == nil {
		b.desc.setErr(fmt.Errorf("field %q: match pattern cannot be nil", b.desc.Name))
		return b
	}
	b.desc.Match = re
	return b
}

// Validate appends a custom validator.
func (b *StringBuilder) Validate(fn Validator) *StringBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Sensitive excludes the field from serialization and logging.
func (b *StringBuilder) Sensitive() *StringBuilder {
	b.desc.Sensitive = true
	return b
}

// Immutable forbids updates after create.
func (b *StringBuilder) Immutable() *StringBuilder {
	b.desc.Immutable = true
	return b
}

// Comment attaches a human-readable description.
func (b *StringBuilder) Comment(c string) *StringBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *StringBuilder) Descriptor() *Descriptor {
	if b.desc.MinLen != nil && b.desc.MaxLen != nil && *b.desc.MinLen > *b.desc.MaxLen {
		b.desc.setErr(fmt.Errorf("field %q: minimum length %d exceeds maximum length %d",
			b.desc.Name, *b.desc.MinLen, *b.desc.MaxLen))
	}
	return b.desc
}

// Enum returns a new builder for a text field restricted to a fixed set
// of values.
func Enum(name string) *EnumBuilder {
	return &EnumBuilder{desc: &Descriptor{Name: name, Type: TypeString}}
}

// EnumBuilder builds enumerated text field descriptors.
type EnumBuilder struct {
	desc *Descriptor
}

// Values declares the allowed values.
func (b *EnumBuilder) Values(values ...string) *EnumBuilder {
	if len(values) == 0 {
		b.desc.setErr(fmt.Errorf("field %q: enum requires at least one value", b.desc.Name))
		return b
	}
	for _, v := range values {
		if v == "" {
			b.desc.setErr(fmt.Errorf("field %q: enum values cannot be empty", b.desc.Name))
			return b
		}
	}
	b.desc.Enums = append(b.desc.Enums, values...)
	return b
}

// Required marks the field as mandatory on create.
func (b *EnumBuilder) Required() *EnumBuilder {
	b.desc.Required = true
	return b
}

// Default sets the value used when the field is absent on create. The
// value must be one of the declared enum values.
func (b *EnumBuilder) Default(s string) *EnumBuilder {
	b.desc.Default = s
	return b
}

// Validate appends a custom validator, replacing the auto-generated
// membership check.
func (b *EnumBuilder) Validate(fn Validator) *EnumBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Comment attaches a human-readable description.
func (b *EnumBuilder) Comment(c string) *EnumBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *EnumBuilder) Descriptor() *Descriptor {
	if len(b.desc.Enums) == 0 {
		b.desc.setErr(fmt.Errorf("field %q: enum requires at least one value", b.desc.Name))
	}
	if s, ok := b.desc.Default.(string); ok && len(b.desc.Enums) > 0 {
		if !contains(b.desc.Enums, s) {
			b.desc.setErr(fmt.Errorf("field %q: default %q is not an allowed value", b.desc.Name, s))
		}
	}
	return b.desc
}

// Bool returns a new builder for a boolean field.
func Bool(name string) *BoolBuilder {
	return &BoolBuilder{desc: &Descriptor{Name: name, Type: TypeBool}}
}

// BoolBuilder builds boolean field descriptors.
type BoolBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *BoolBuilder) Required() *BoolBuilder {
	b.desc.Required = true
	return b
}

// Default sets the value used when the field is absent on create.
func (b *BoolBuilder) Default(v bool) *BoolBuilder {
	b.desc.Default = v
	return b
}

// Comment attaches a human-readable description.
func (b *BoolBuilder) Comment(c string) *BoolBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *BoolBuilder) Descriptor() *Descriptor { return b.desc }

// Time returns a new builder for a date field.
func Time(name string) *TimeBuilder {
	return &TimeBuilder{desc: &Descriptor{Name: name, Type: TypeTime}}
}

// TimeBuilder builds date field descriptors.
type TimeBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *TimeBuilder) Required() *TimeBuilder {
	b.desc.Required = true
	return b
}

// Default sets a function invoked per document for the default value,
// typically time.Now.
func (b *TimeBuilder) Default(fn func() time.Time) *TimeBuilder {
	b.desc.Default = fn
	return b
}

// DefaultTime sets a fixed default value.
func (b *TimeBuilder) DefaultTime(t time.Time) *TimeBuilder {
	b.desc.Default = t
	return b
}

// Immutable forbids updates after create.
func (b *TimeBuilder) Immutable() *TimeBuilder {
	b.desc.Immutable = true
	return b
}

// Comment attaches a human-readable description.
func (b *TimeBuilder) Comment(c string) *TimeBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *TimeBuilder) Descriptor() *Descriptor { return b.desc }

// Bytes returns a new builder for a binary field.
func Bytes(name string) *BytesBuilder {
	return &BytesBuilder{desc: &Descriptor{Name: name, Type: TypeBytes}}
}

// BytesBuilder builds binary field descriptors.
type BytesBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *BytesBuilder) Required() *BytesBuilder {
	b.desc.Required = true
	return b
}

// MaxLen enforces a maximum value length in bytes.
func (b *BytesBuilder) MaxLen(i int) *BytesBuilder {
	if i < 0 {
		b.desc.setErr(fmt.Errorf("field %q: maximum length cannot be negative", b.desc.Name))
		return b
	}
	b.desc.MaxLen = &i
	return b
}

// Comment attaches a human-readable description.
func (b *BytesBuilder) Comment(c string) *BytesBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *BytesBuilder) Descriptor() *Descriptor { return b.desc }

// Map returns a new builder for a free-form object field.
func Map(name string) *MapBuilder {
	return &MapBuilder{desc: &Descriptor{Name: name, Type: TypeMap}}
}

// MapBuilder builds free-form object field descriptors.
type MapBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *MapBuilder) Required() *MapBuilder {
	b.desc.Required = true
	return b
}

// Default sets the value used when the field is absent on create.
func (b *MapBuilder) Default(fn func() any) *MapBuilder {
	b.desc.Default = fn
	return b
}

// Comment attaches a human-readable description.
func (b *MapBuilder) Comment(c string) *MapBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *MapBuilder) Descriptor() *Descriptor { return b.desc }

// Mixed returns a new builder for a field holding any value shape.
func Mixed(name string) *MixedBuilder {
	return &MixedBuilder{desc: &Descriptor{Name: name, Type: TypeMixed}}
}

// MixedBuilder builds schemaless field descriptors.
type MixedBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *MixedBuilder) Required() *MixedBuilder {
	b.desc.Required = true
	return b
}

// Comment attaches a human-readable description.
func (b *MixedBuilder) Comment(c string) *MixedBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *MixedBuilder) Descriptor() *Descriptor { return b.desc }

// ObjectID returns a new builder for an identity field referencing
// another model. The reference is an opaque relation marker; the target
// model's tree is never embedded.
func ObjectID(name string) *ObjectIDBuilder {
	return &ObjectIDBuilder{desc: &Descriptor{Name: name, Type: TypeObjectID}}
}

// ObjectIDBuilder builds identity and reference field descriptors.
type ObjectIDBuilder struct {
	desc *Descriptor
}

// Ref names the model this field references.
func (b *ObjectIDBuilder) Ref(model string) *ObjectIDBuilder {
	if model == "" {
		b.desc.setErr(fmt.Errorf("field %q: reference model cannot be empty", b.desc.Name))
		return b
	}
	b.desc.Relation = model
	return b
}

// Required marks the field as mandatory on create.
func (b *ObjectIDBuilder) Required() *ObjectIDBuilder {
	b.desc.Required = true
	return b
}

// Unique enforces at most one document per value.
func (b *ObjectIDBuilder) Unique() *ObjectIDBuilder {
	b.desc.Unique = true
	return b
}

// Immutable forbids updates after create.
func (b *ObjectIDBuilder) Immutable() *ObjectIDBuilder {
	b.desc.Immutable = true
	return b
}

// Comment attaches a human-readable description.
func (b *ObjectIDBuilder) Comment(c string) *ObjectIDBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *ObjectIDBuilder) Descriptor() *Descriptor { return b.desc }

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

var (
	_ Builder = (*StringBuilder)(nil)
	_ Builder = (*EnumBuilder)(nil)
	_ Builder = (*BoolBuilder)(nil)
	_ Builder = (*TimeBuilder)(nil)
	_ Builder = (*BytesBuilder)(nil)
	_ Builder = (*MapBuilder)(nil)
	_ Builder = (*MixedBuilder)(nil)
	_ Builder = (*ObjectIDBuilder)(nil)
)
