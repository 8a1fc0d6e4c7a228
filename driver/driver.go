// Package driver defines the boundary between compiled models and the
// document stores that materialize them.
//
// A store implements Driver to turn a CollectionSpec (compiled tree
// plus synthesized features) into a live Handle. Handles surface their
// raw failure shapes (DuplicateKeyError, ValidationError, CastError,
// NotFoundError) unmapped; translating them into the user-facing error
// taxonomy happens in the root package, never here.
package driver

import (
	"context"

	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/synth"
)

// A CollectionSpec carries everything a store needs to materialize one
// model: the compiled tree and the features synthesized from it.
type CollectionSpec struct {
	Tree     *schema.Tree
	Features *synth.FeatureSet
}

// Driver materializes compiled models into live handles.
type Driver interface {
	// Materialize creates or binds the physical collection for the
	// spec. It is called at most once per registered model.
	Materialize(ctx context.Context, spec *CollectionSpec) (Handle, error)
	// Close releases the store's resources.
	Close() error
}

// Handle is a live, materialized model.
type Handle interface {
	Insert(ctx context.Context, doc schema.Document) (schema.Document, error)
	FindByID(ctx context.Context, id string) (schema.Document, error)
	Find(ctx context.Context, filter schema.Document) ([]schema.Document, error)
	UpdateByID(ctx context.Context, id string, changes schema.Document) (schema.Document, error)
	DeleteByID(ctx context.Context, id string) error
	Aggregate(ctx context.Context, pipeline []schema.Document) ([]schema.Document, error)
	// SyncIndexes creates the spec's indexes on the physical store.
	SyncIndexes(ctx context.Context) error
}

// Rebinder is implemented by handles that observe spec extensions made
// after materialization. A handle without it keeps the features it was
// materialized with; extensions then only affect the stored spec.
type Rebinder interface {
	Rebind(spec *CollectionSpec) error
}

// Chain wraps terminal with every feature-set hook matching op, in
// declaration order. Aggregation stage specs carry no middleware and
// are skipped.
func Chain(spec *CollectionSpec, op hook.Op, terminal hook.Mutator) hook.Mutator {
	if spec == nil || spec.Features == nil {
		return terminal
	}
	var hooks []hook.Hook
	for _, h := range spec.Features.Hooks {
		if h.Hook != nil && h.Matches(op) {
			hooks = append(hooks, h.Hook)
		}
	}
	return hook.Apply(terminal, hooks...)
}

// Stages returns the pipeline stages to prepend to an aggregation
// against the spec.
func Stages(spec *CollectionSpec) []schema.Document {
	if spec == nil || spec.Features == nil {
		return nil
	}
	return spec.Features.Stages()
}
