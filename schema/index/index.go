// Package index provides builders for document collection indexes.
//
// Indexes are declared over field paths in key order. Beyond plain and
// unique indexes, the package covers the document-store index families:
// weighted text indexes, TTL indexes, geospatial indexes and partial
// indexes restricted by a filter document.
//
//	index.Fields("status", "createdAt").Desc("createdAt")
//	index.Text("name", "title").Weight("name", 10)
//	index.TTL("expiresAt", 0)
//	index.Geo("location")
//	index.Fields("email").Unique()
package index

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ascending and descending key orders.
const (
	Asc  = 1
	Desc = -1
)

// A Key is one indexed field path with its sort order.
type Key struct {
	Field string
	Order int
}

// A Descriptor is the canonical specification of one collection index.
type Descriptor struct {
	Keys        []Key          // indexed field paths in key order
	Unique      bool           // reject duplicate values
	Sparse      bool           // skip documents missing the keys
	Text        bool           // full-text index
	Weights     map[string]int // per-field text weights
	ExpireAfter *time.Duration // TTL relative to the single time key
	Geo         bool           // geospatial (2dsphere) index
	Partial     map[string]any // filter restricting indexed documents
	StorageKey  string         // explicit index name
	Err         error          // first builder misuse
}

// Name returns the index name: the storage key when set, otherwise the
// conventional key-derived name (for example "status_1_createdAt_-1",
// "name_text" for text indexes).
func (d *Descriptor) Name() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	parts := make([]string, 0, len(d.Keys))
	for _, k := range d.Keys {
		switch {
		case d.Text:
			parts = append(parts, k.Field+"_text")
		case d.Geo:
			parts = append(parts, k.Field+"_2dsphere")
		default:
			parts = append(parts, k.Field+"_"+strconv.Itoa(k.Order))
		}
	}
	return strings.Join(parts, "_")
}

// Equal reports if two descriptors specify the same index.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Unique != o.Unique || d.Sparse != o.Sparse || d.Text != o.Text ||
		d.Geo != o.Geo || d.StorageKey != o.StorageKey {
		return false
	}
	if (d.ExpireAfter == nil) != (o.ExpireAfter == nil) {
		return false
	}
	if d.ExpireAfter != nil && *d.ExpireAfter != *o.ExpireAfter {
		return false
	}
	if len(d.Keys) != len(o.Keys) {
		return false
	}
	for i := range d.Keys {
		if d.Keys[i] != o.Keys[i] {
			return false
		}
	}
	if len(d.Weights) != len(o.Weights) {
		return false
	}
	for f, w := range d.Weights {
		if o.Weights[f] != w {
			return false
		}
	}
	return fmt.Sprint(d.Partial) == fmt.Sprint(o.Partial)
}

// Builder assembles an index descriptor.
type Builder struct {
	desc *Descriptor
}

// Fields starts a plain index over the given field paths in ascending
// order.
func Fields(fields ...string) *Builder {
	b := &Builder{desc: &Descriptor{}}
	if len(fields) == 0 {
		b.desc.Err = fmt.Errorf("index requires at least one field")
		return b
	}
	for _, f := range fields {
		b.desc.Keys = append(b.desc.Keys, Key{Field: f, Order: Asc})
	}
	return b
}

// Text starts a full-text index over the given field paths with weight 1.
func Text(fields ...string) *Builder {
	b := Fields(fields...)
	b.desc.Text = true
	b.desc.Weights = make(map[string]int, len(fields))
	for _, f := range fields {
		b.desc.Weights[f] = 1
	}
	return b
}

// TTL starts a time-to-live index on a single time field. Documents
// expire the given duration after the field's value.
func TTL(f string, expireAfter time.Duration) *Builder {
	b := Fields(f)
	if expireAfter < 0 {
		b.desc.Err = fmt.Errorf("index %q: expiry cannot be negative", f)
		return b
	}
	b.desc.ExpireAfter = &expireAfter
	return b
}

// Geo starts a geospatial index on a single location field.
func Geo(f string) *Builder {
	b := Fields(f)
	b.desc.Geo = true
	return b
}

// Desc flips the listed fields to descending order. Fields not already
// part of the index are recorded as misuse.
func (b *Builder) Desc(fields ...string) *Builder {
	for _, f := range fields {
		found := false
		for i := range b.desc.Keys {
			if b.desc.Keys[i].Field == f {
				b.desc.Keys[i].Order = Desc
				found = true
				break
			}
		}
		if !found && b.desc.Err == nil {
			b.desc.Err = fmt.Errorf("index: cannot order unknown field %q", f)
		}
	}
	return b
}

// Weight sets the text-search weight for one field of a text index.
func (b *Builder) Weight(f string, w int) *Builder {
	if !b.desc.Text {
		if b.desc.Err == nil {
			b.desc.Err = fmt.Errorf("index: weights apply to text indexes only")
		}
		return b
	}
	if w <= 0 {
		if b.desc.Err == nil {
			b.desc.Err = fmt.Errorf("index: weight for %q must be positive", f)
		}
		return b
	}
	if _, ok := b.desc.Weights[f]; !ok {
		if b.desc.Err == nil {
			b.desc.Err = fmt.Errorf("index: cannot weight unknown field %q", f)
		}
		return b
	}
	b.desc.Weights[f] = w
	return b
}

// Unique rejects duplicate values across the collection.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Sparse skips documents that are missing the indexed fields.
func (b *Builder) Sparse() *Builder {
	b.desc.Sparse = true
	return b
}

// Partial restricts the index to documents matching the filter.
func (b *Builder) Partial(filter map[string]any) *Builder {
	if len(filter) == 0 {
		if b.desc.Err == nil {
			b.desc.Err = fmt.Errorf("index: partial filter cannot be empty")
		}
		return b
	}
	b.desc.Partial = filter
	return b
}

// StorageKey sets an explicit index name.
func (b *Builder) StorageKey(key string) *Builder {
	b.desc.StorageKey = key
	return b
}

// Descriptor returns the built descriptor.
func (b *Builder) Descriptor() *Descriptor {
	d := b.desc
	if d.Err == nil {
		if d.ExpireAfter != nil && len(d.Keys) != 1 {
			d.Err = fmt.Errorf("index %q: TTL indexes cover exactly one field", d.Name())
		}
		if d.Geo && len(d.Keys) != 1 {
			d.Err = fmt.Errorf("index %q: geospatial indexes cover exactly one field", d.Name())
		}
	}
	return d
}
