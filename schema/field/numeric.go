package field

import "fmt"

// Number returns a new builder for a numeric field.
func Number(name string) *NumberBuilder {
	return &NumberBuilder{desc: &Descriptor{Name: name, Type: TypeNumber}}
}

// NumberBuilder builds numeric field descriptors.
type NumberBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *NumberBuilder) Required() *NumberBuilder {
	b.desc.Required = true
	return b
}

// Optional documents that the field may be absent.
func (b *NumberBuilder) Optional() *NumberBuilder {
	b.desc.Required = false
	return b
}

// Unique enforces at most one document per value.
func (b *NumberBuilder) Unique() *NumberBuilder {
	b.desc.Unique = true
	return b
}

// Default sets the value used when the field is absent on create.
func (b *NumberBuilder) Default(v float64) *NumberBuilder {
	b.desc.Default = v
	return b
}

// Min enforces a lower bound.
func (b *NumberBuilder) Min(v float64) *NumberBuilder {
	b.desc.Min = &v
	return b
}

// Max enforces an upper bound.
func (b *NumberBuilder) Max(v float64) *NumberBuilder {
	b.desc.Max = &v
	return b
}

// Range enforces both bounds at once.
func (b *NumberBuilder) Range(min, max float64) *NumberBuilder {
	return b.Min(min).Max(max)
}

// Positive requires values greater than zero.
func (b *NumberBuilder) Positive() *NumberBuilder {
	v := 1e-9
	b.desc.Min = &v
	return b
}

// NonNegative requires values of at least zero.
func (b *NumberBuilder) NonNegative() *NumberBuilder {
	return b.Min(0)
}

// Validate appends a custom validator.
func (b *NumberBuilder) Validate(fn Validator) *NumberBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Immutable forbids updates after create.
func (b *NumberBuilder) Immutable() *NumberBuilder {
	b.desc.Immutable = true
	return b
}

// Comment attaches a human-readable description.
func (b *NumberBuilder) Comment(c string) *NumberBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *NumberBuilder) Descriptor() *Descriptor {
	if b.desc.Min != nil && b.desc.Max != nil && *b.desc.Min > *b.desc.Max {
		b.desc.setErr(fmt.Errorf("field %q: minimum %v exceeds maximum %v",
			b.desc.Name, *b.desc.Min, *b.desc.Max))
	}
	return b.desc
}

// Decimal returns a new builder for a fixed-precision decimal field.
// Values travel as canonical decimal strings.
func Decimal(name string) *DecimalBuilder {
	return &DecimalBuilder{desc: &Descriptor{Name: name, Type: TypeDecimal}}
}

// DecimalBuilder builds decimal field descriptors.
type DecimalBuilder struct {
	desc *Descriptor
}

// Required marks the field as mandatory on create.
func (b *DecimalBuilder) Required() *DecimalBuilder {
	b.desc.Required = true
	return b
}

// Default sets the value used when the field is absent on create.
func (b *DecimalBuilder) Default(v string) *DecimalBuilder {
	b.desc.Default = v
	return b
}

// Min enforces a lower bound.
func (b *DecimalBuilder) Min(v float64) *DecimalBuilder {
	b.desc.Min = &v
	return b
}

// Max enforces an upper bound.
func (b *DecimalBuilder) Max(v float64) *DecimalBuilder {
	b.desc.Max = &v
	return b
}

// Comment attaches a human-readable description.
func (b *DecimalBuilder) Comment(c string) *DecimalBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *DecimalBuilder) Descriptor() *Descriptor {
	if b.desc.Min != nil && b.desc.Max != nil && *b.desc.Min > *b.desc.Max {
		b.desc.setErr(fmt.Errorf("field %q: minimum %v exceeds maximum %v",
			b.desc.Name, *b.desc.Min, *b.desc.Max))
	}
	return b.desc
}

var (
	_ Builder = (*NumberBuilder)(nil)
	_ Builder = (*DecimalBuilder)(nil)
)
