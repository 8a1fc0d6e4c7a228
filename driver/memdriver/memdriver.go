// Package memdriver provides the in-memory reference store. It backs
// the registry by default and gives tests a complete store with real
// failure shapes: unique violations, identifier cast failures and
// missing-document lookups surface exactly as a physical store would
// report them.
//
// Identifiers are UUID strings. Uniqueness is enforced from the unique
// index descriptors of the collection spec. The aggregation support
// covers the $match, $sort and $limit stages.
package memdriver

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/developer-rs5/easy-mongoo/driver"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"
	"github.com/developer-rs5/easy-mongoo/schema/index"

	"github.com/google/uuid"
)

// Driver keeps every materialized collection in process memory.
type Driver struct {
	mu    sync.Mutex
	colls map[string]*Collection
}

// New returns an empty in-memory driver.
func New() *Driver {
	return &Driver{colls: make(map[string]*Collection)}
}

// Materialize creates the collection for the spec, or returns the one
// already materialized under the spec's collection name.
func (d *Driver) Materialize(_ context.Context, spec *driver.CollectionSpec) (driver.Handle, error) {
	if spec == nil || spec.Tree == nil {
		return nil, fmt.Errorf("memdriver: cannot materialize a nil spec")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	name := spec.Tree.Collection
	if c, ok := d.colls[name]; ok {
		return c, nil
	}
	c := &Collection{
		name:  name,
		model: spec.Tree.Name,
		spec:  spec,
		docs:  make(map[string]schema.Document),
	}
	d.colls[name] = c
	return c, nil
}

// Collection returns the materialized collection by name, or nil.
func (d *Driver) Collection(name string) *Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.colls[name]
}

// Close drops every collection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.colls = make(map[string]*Collection)
	return nil
}

// A Collection is one materialized in-memory collection. Documents are
// stored cloned and returned cloned, so callers never share memory
// with the store.
type Collection struct {
	name  string
	model string

	mu     sync.RWMutex
	spec   *driver.CollectionSpec
	docs   map[string]schema.Document
	order  []string
	synced []string
}

// Name returns the physical collection name.
func (c *Collection) Name() string { return c.name }

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *Collection) idField() string {
	if c.spec.Tree.Identity != "" {
		return c.spec.Tree.Identity
	}
	return schema.IdentityField
}

// Insert stores doc, assigning a fresh identity unless the document
// carries one.
func (c *Collection) Insert(_ context.Context, doc schema.Document) (schema.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := doc.Clone()
	if stored == nil {
		stored = schema.Document{}
	}
	id, err := c.identity(stored)
	if err != nil {
		return nil, err
	}
	if _, ok := c.docs[id]; ok {
		return nil, &driver.DuplicateKeyError{Field: c.idField(), Value: id}
	}
	if err := c.checkUnique(stored, id); err != nil {
		return nil, err
	}
	c.docs[id] = stored
	c.order = append(c.order, id)
	return stored.Clone(), nil
}

// identity returns the document's identity, assigning a new one when
// absent. A provided identity must parse as a UUID.
func (c *Collection) identity(doc schema.Document) (string, error) {
	f := c.idField()
	if v, ok := doc[f]; ok {
		s, ok := v.(string)
		if !ok {
			return "", &driver.CastError{Value: v}
		}
		if _, err := uuid.Parse(s); err != nil {
			return "", &driver.CastError{Value: s}
		}
		return s, nil
	}
	id := uuid.NewString()
	doc[f] = id
	return id, nil
}

func (c *Collection) FindByID(_ context.Context, id string) (schema.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &driver.CastError{Value: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, &driver.NotFoundError{Model: c.model, ID: id}
	}
	return doc.Clone(), nil
}

// Find returns the documents matching filter in insertion order. A nil
// filter matches everything.
func (c *Collection) Find(_ context.Context, filter schema.Document) ([]schema.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []schema.Document
	for _, id := range c.order {
		if matchDocument(c.docs[id], filter) {
			out = append(out, c.docs[id].Clone())
		}
	}
	return out, nil
}

func (c *Collection) UpdateByID(_ context.Context, id string, changes schema.Document) (schema.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &driver.CastError{Value: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, &driver.NotFoundError{Model: c.model, ID: id}
	}
	next := doc.Clone()
	for f, v := range changes.Clone() {
		next[f] = v
	}
	next[c.idField()] = id
	if err := c.checkUnique(next, id); err != nil {
		return nil, err
	}
	c.docs[id] = next
	return next.Clone(), nil
}

func (c *Collection) DeleteByID(_ context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &driver.CastError{Value: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return &driver.NotFoundError{Model: c.model, ID: id}
	}
	delete(c.docs, id)
	for i, other := range c.order {
		if other == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Aggregate evaluates the supported pipeline stages over a snapshot of
// the collection.
func (c *Collection) Aggregate(_ context.Context, pipeline []schema.Document) ([]schema.Document, error) {
	c.mu.RLock()
	out := make([]schema.Document, 0, len(c.docs))
	for _, id := range c.order {
		out = append(out, c.docs[id].Clone())
	}
	c.mu.RUnlock()
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("memdriver: aggregation stages carry exactly one operator, got %d", len(stage))
		}
		var err error
		for op, arg := range stage {
			out, err = applyStage(out, op, arg)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applyStage(docs []schema.Document, op string, arg any) ([]schema.Document, error) {
	switch op {
	case "$match":
		filter, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("memdriver: $match takes a document")
		}
		kept := docs[:0]
		for _, d := range docs {
			if matchDocument(d, filter) {
				kept = append(kept, d)
			}
		}
		return kept, nil
	case "$sort":
		spec, ok := asMap(arg)
		if !ok || len(spec) != 1 {
			return nil, fmt.Errorf("memdriver: $sort takes a single-key document")
		}
		for f, dir := range spec {
			order, ok := field.Float(dir)
			if !ok || (order != 1 && order != -1) {
				return nil, fmt.Errorf("memdriver: $sort direction for %q must be 1 or -1", f)
			}
			sort.SliceStable(docs, func(i, j int) bool {
				cmp, ok := compareValues(docs[i][f], docs[j][f])
				if !ok {
					return false
				}
				if order < 0 {
					return cmp > 0
				}
				return cmp < 0
			})
		}
		return docs, nil
	case "$limit":
		n, ok := field.Float(arg)
		if !ok || n < 0 {
			return nil, fmt.Errorf("memdriver: $limit takes a non-negative number")
		}
		if int(n) < len(docs) {
			docs = docs[:int(n)]
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("memdriver: unsupported aggregation stage %q", op)
	}
}

// SyncIndexes validates the spec's index descriptors and verifies the
// stored documents against the unique ones. Expiry and text metadata
// are recorded but not enforced; a physical store applies those
// server-side.
func (c *Collection) SyncIndexes(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spec.Features == nil {
		return nil
	}
	synced := make([]string, 0, len(c.spec.Features.Indexes))
	for _, idx := range c.spec.Features.Indexes {
		if idx.Err != nil {
			return idx.Err
		}
		if idx.Unique {
			if err := c.verifyUnique(idx); err != nil {
				return err
			}
		}
		synced = append(synced, idx.Name())
	}
	c.synced = synced
	return nil
}

// SyncedIndexes returns the names recorded by the last SyncIndexes.
func (c *Collection) SyncedIndexes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.synced))
	copy(out, c.synced)
	return out
}

// Rebind swaps the collection spec, picking up extended features for
// later writes and syncs.
func (c *Collection) Rebind(spec *driver.CollectionSpec) error {
	if spec == nil || spec.Tree == nil {
		return fmt.Errorf("memdriver: cannot rebind to a nil spec")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spec = spec
	return nil
}

// checkUnique verifies doc against every unique index, ignoring the
// document stored under selfID. Documents missing an indexed field are
// skipped, as a sparse index would.
func (c *Collection) checkUnique(doc schema.Document, selfID string) error {
	if c.spec.Features == nil {
		return nil
	}
	for _, idx := range c.spec.Features.Indexes {
		if !idx.Unique {
			continue
		}
		key, ok := uniqueKey(idx, doc)
		if !ok {
			continue
		}
		for id, other := range c.docs {
			if id == selfID {
				continue
			}
			if k, ok := uniqueKey(idx, other); ok && k == key {
				f := idx.Keys[0].Field
				return &driver.DuplicateKeyError{Field: f, Value: doc[f]}
			}
		}
	}
	return nil
}

func (c *Collection) verifyUnique(idx *index.Descriptor) error {
	seen := make(map[string]string, len(c.docs))
	for _, id := range c.order {
		key, ok := uniqueKey(idx, c.docs[id])
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			f := idx.Keys[0].Field
			return &driver.DuplicateKeyError{Field: f, Value: c.docs[id][f]}
		}
		seen[key] = id
	}
	return nil
}

func uniqueKey(idx *index.Descriptor, doc schema.Document) (string, bool) {
	var b strings.Builder
	for _, k := range idx.Keys {
		v, ok := doc[k.Field]
		if !ok || v == nil {
			return "", false
		}
		fmt.Fprintf(&b, "%v\x00", v)
	}
	return b.String(), true
}

// matchDocument evaluates a filter document: field conditions are
// either operator documents ($ne, $in, $gt, $gte, $lt, $lte) or plain
// values compared for equality.
func matchDocument(doc, filter schema.Document) bool {
	for f, cond := range filter {
		if !matchField(doc[f], cond) {
			return false
		}
	}
	return true
}

func matchField(v, cond any) bool {
	ops, ok := operators(cond)
	if !ok {
		return equalValues(v, cond)
	}
	for op, arg := range ops {
		if !applyOperator(v, op, arg) {
			return false
		}
	}
	return true
}

// operators reports if cond is an operator document: a non-empty map
// whose keys all start with "$".
func operators(cond any) (map[string]any, bool) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func applyOperator(v any, op string, arg any) bool {
	switch op {
	case "$ne":
		return !equalValues(v, arg)
	case "$in":
		items, ok := arg.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if equalValues(v, item) {
				return true
			}
		}
		return false
	case "$gt", "$gte", "$lt", "$lte":
		cmp, ok := compareValues(v, arg)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			return cmp > 0
		case "$gte":
			return cmp >= 0
		case "$lt":
			return cmp < 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values when they are of a comparable family:
// times, numbers or strings.
func compareValues(a, b any) (int, bool) {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if af, ok := field.Float(a); ok {
		bf, ok := field.Float(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case schema.Document:
		return t, true
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

var (
	_ driver.Driver   = (*Driver)(nil)
	_ driver.Handle   = (*Collection)(nil)
	_ driver.Rebinder = (*Collection)(nil)
)
