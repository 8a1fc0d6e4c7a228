package mongoo

import (
	"context"
	"errors"
	"fmt"

	"github.com/developer-rs5/easy-mongoo/driver"
	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/virtual"
	"github.com/developer-rs5/easy-mongoo/synth"
)

// A Model is the registered handle to one compiled schema. It runs the
// model's hook chains around every write, validates documents before
// they reach the store, and funnels store failures through the error
// normalizer. Models are cheap views over the registry entry and safe
// for concurrent use.
type Model struct {
	name  string
	entry *RegistryEntry
	reg   *Registry
}

// Name returns the registered model name.
func (m *Model) Name() string { return m.name }

// Tree returns the compiled schema tree.
func (m *Model) Tree() *schema.Tree { return m.entry.Tree }

// Features returns the model's synthesized and extended feature set.
func (m *Model) Features() *synth.FeatureSet { return m.entry.Features }

// Handle returns the store handle the model was materialized with.
func (m *Model) Handle() driver.Handle { return m.entry.Handle }

// hookCtx carries the registry logger to the hook chain, so the
// synthesized observability hooks have somewhere to write.
func (m *Model) hookCtx(ctx context.Context) context.Context {
	return m.reg.logger.WithContext(ctx)
}

// Create inserts a document through the model's write pipeline:
// defaults, canonicalization and timestamps are applied first, then
// the pre hooks run, then validation and the physical insert, then the
// post hooks. The input document is never mutated. The returned
// document carries the assigned identity.
func (m *Model) Create(ctx context.Context, doc Document) (Document, error) {
	tree := m.entry.Tree
	working := doc.Clone()
	if working == nil {
		working = Document{}
	}
	applyDefaults(tree, working)
	normalizeDocument(tree, working)
	if ts := tree.Timestamps; ts != nil {
		now := m.reg.clock().UTC()
		if _, ok := working[ts.CreatedAt]; !ok {
			working[ts.CreatedAt] = now
		}
		if _, ok := working[ts.UpdatedAt]; !ok {
			working[ts.UpdatedAt] = now
		}
	}
	mut := hook.NewMutation(m.name, hook.OpCreate, working)
	terminal := hook.MutateFunc(func(ctx context.Context, mm hook.Mutation) (schema.Document, error) {
		if err := validateDocument(tree, mm.Document(), true); err != nil {
			return nil, err
		}
		return m.entry.Handle.Insert(ctx, mm.Document())
	})
	out, err := driver.Chain(m.entry.spec(), hook.OpCreate, terminal).Mutate(m.hookCtx(ctx), mut)
	if err != nil {
		return nil, m.reg.norm.Normalize("create document", m.name, "", err)
	}
	return out, nil
}

// FindByID returns the document with the given identity, or (nil, nil)
// when no document has it. A malformed identifier is an error.
func (m *Model) FindByID(ctx context.Context, id string) (Document, error) {
	doc, err := m.entry.Handle.FindByID(ctx, id)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, m.reg.norm.Normalize("find document", m.name, id, err)
	}
	return doc, nil
}

// FindByIDOrFail is FindByID with a missing document reported as a
// NotFound error instead of (nil, nil).
func (m *Model) FindByIDOrFail(ctx context.Context, id string) (Document, error) {
	doc, err := m.entry.Handle.FindByID(ctx, id)
	if err != nil {
		return nil, m.reg.norm.Normalize("find document", m.name, id, err)
	}
	return doc, nil
}

// Find returns the documents matching filter. A nil filter matches
// everything.
func (m *Model) Find(ctx context.Context, filter Document) ([]Document, error) {
	docs, err := m.entry.Handle.Find(ctx, filter)
	if err != nil {
		return nil, m.reg.norm.Normalize("find documents", m.name, "", err)
	}
	return docs, nil
}

// UpdateByID applies changes to the document with the given identity
// through the update pipeline and returns the updated document, or
// (nil, nil) when no document has the identity. Immutable fields in
// the change set are dropped, not rejected.
func (m *Model) UpdateByID(ctx context.Context, id string, changes Document) (Document, error) {
	doc, err := m.updateByID(ctx, id, changes)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, m.reg.norm.Normalize("update document", m.name, id, err)
	}
	return doc, nil
}

// UpdateByIDOrFail is UpdateByID with a missing document reported as a
// NotFound error.
func (m *Model) UpdateByIDOrFail(ctx context.Context, id string, changes Document) (Document, error) {
	doc, err := m.updateByID(ctx, id, changes)
	if err != nil {
		return nil, m.reg.norm.Normalize("update document", m.name, id, err)
	}
	return doc, nil
}

func (m *Model) updateByID(ctx context.Context, id string, changes Document) (schema.Document, error) {
	prev, err := m.entry.Handle.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tree := m.entry.Tree
	working := changes.Clone()
	if working == nil {
		working = Document{}
	}
	stripImmutable(tree, working)
	normalizeDocument(tree, working)
	mut := hook.NewUpdateMutation(m.name, hook.OpUpdateOne, prev, working)
	terminal := hook.MutateFunc(func(ctx context.Context, mm hook.Mutation) (schema.Document, error) {
		final := changedSet(mm)
		if err := validateDocument(tree, final, false); err != nil {
			return nil, err
		}
		return m.entry.Handle.UpdateByID(ctx, id, final)
	})
	return driver.Chain(m.entry.spec(), hook.OpUpdateOne, terminal).Mutate(m.hookCtx(ctx), mut)
}

// changedSet projects a mutation down to the fields it changed. Hooks
// run between the caller's change set and the store write, so the
// written set is recomputed after the chain.
func changedSet(m hook.Mutation) schema.Document {
	out := schema.Document{}
	for _, name := range m.Fields() {
		if !m.FieldChanged(name) {
			continue
		}
		if v, ok := m.Field(name); ok {
			out[name] = v
		}
	}
	return out
}

// DeleteByID removes the document with the given identity. Deleting a
// missing document is a no-op.
func (m *Model) DeleteByID(ctx context.Context, id string) error {
	if err := m.deleteByID(ctx, id); err != nil {
		if isMissing(err) {
			return nil
		}
		return m.reg.norm.Normalize("delete document", m.name, id, err)
	}
	return nil
}

// DeleteByIDOrFail is DeleteByID with a missing document reported as a
// NotFound error.
func (m *Model) DeleteByIDOrFail(ctx context.Context, id string) error {
	if err := m.deleteByID(ctx, id); err != nil {
		return m.reg.norm.Normalize("delete document", m.name, id, err)
	}
	return nil
}

func (m *Model) deleteByID(ctx context.Context, id string) error {
	// The document is fetched first so delete hooks observe it.
	prev, err := m.entry.Handle.FindByID(ctx, id)
	if err != nil {
		return err
	}
	mut := hook.NewMutation(m.name, hook.OpDeleteOne, prev)
	terminal := hook.MutateFunc(func(ctx context.Context, mm hook.Mutation) (schema.Document, error) {
		if err := m.entry.Handle.DeleteByID(ctx, id); err != nil {
			return nil, err
		}
		return mm.Document(), nil
	})
	_, err = driver.Chain(m.entry.spec(), hook.OpDeleteOne, terminal).Mutate(m.hookCtx(ctx), mut)
	return err
}

// Aggregate runs pipeline with the model's synthesized stages (such as
// the soft-delete exclusion) prepended.
func (m *Model) Aggregate(ctx context.Context, pipeline []Document) ([]Document, error) {
	stages := driver.Stages(m.entry.spec())
	full := make([]schema.Document, 0, len(stages)+len(pipeline))
	full = append(full, stages...)
	full = append(full, pipeline...)
	var docs []schema.Document
	terminal := hook.MutateFunc(func(ctx context.Context, mm hook.Mutation) (schema.Document, error) {
		var err error
		docs, err = m.entry.Handle.Aggregate(ctx, full)
		return nil, err
	})
	mut := hook.NewMutation(m.name, hook.OpAggregate, nil)
	if _, err := driver.Chain(m.entry.spec(), hook.OpAggregate, terminal).Mutate(m.hookCtx(ctx), mut); err != nil {
		return nil, m.reg.norm.Normalize("aggregate documents", m.name, "", err)
	}
	return docs, nil
}

// Serialize renders doc in its public shape: virtuals materialized,
// sensitive fields dropped, the identity field replaced by its alias,
// internal bookkeeping stripped.
func (m *Model) Serialize(doc Document) Document {
	out := virtual.Materialize(doc, m.entry.Features.Virtuals...)
	return m.entry.Tree.MarshalDocument(out)
}

// SetVirtual runs the named virtual's setter against doc.
func (m *Model) SetVirtual(doc Document, name string, v any) error {
	spec := m.entry.Features.Virtual(name)
	if spec == nil {
		return fmt.Errorf("mongoo: model %q has no virtual %q", m.name, name)
	}
	return spec.Assign(doc, v)
}

// ScopeFilter evaluates the named synthesized scope at the registry
// clock.
func (m *Model) ScopeFilter(name string) (Document, bool) {
	sc := m.entry.Features.Scope(name)
	if sc == nil {
		return nil, false
	}
	return sc.Filter(m.reg.clock()), true
}

// CallMethod invokes an instance method registered through Extend. The
// receiving document is passed through as the method's subject.
func (m *Model) CallMethod(ctx context.Context, name string, doc Document, args ...any) (any, error) {
	m.entry.mu.Lock()
	fn := m.entry.methods[name]
	m.entry.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("mongoo: model %q has no method %q", m.name, name)
	}
	return fn(ctx, m, doc, args...)
}

// CallStatic invokes a model-level function registered through Extend.
func (m *Model) CallStatic(ctx context.Context, name string, args ...any) (any, error) {
	m.entry.mu.Lock()
	fn := m.entry.statics[name]
	m.entry.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("mongoo: model %q has no static %q", m.name, name)
	}
	return fn(ctx, m, args...)
}

// ApplyHelper rewrites filter through a query helper registered
// through Extend.
func (m *Model) ApplyHelper(name string, filter Document, args ...any) (Document, error) {
	m.entry.mu.Lock()
	fn := m.entry.helpers[name]
	m.entry.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("mongoo: model %q has no query helper %q", m.name, name)
	}
	return fn(filter, args...), nil
}

func isMissing(err error) bool {
	var nf *driver.NotFoundError
	return errors.As(err, &nf)
}
