package mongoo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/developer-rs5/easy-mongoo/compiler"
	"github.com/developer-rs5/easy-mongoo/driver"
	"github.com/developer-rs5/easy-mongoo/driver/memdriver"
	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/index"
	"github.com/developer-rs5/easy-mongoo/schema/virtual"
	"github.com/developer-rs5/easy-mongoo/snapshot"
	"github.com/developer-rs5/easy-mongoo/synth"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// A Registry is the process-wide table from model name to compiled
// state. It is an explicit object with its own lifecycle: construct
// one at startup, share it, and Reset it between tests. Registration
// is atomic per name; a race between two first-time registrations of
// the same name produces exactly one entry and one materialization.
type Registry struct {
	logger zerolog.Logger
	drv    driver.Driver
	clock  func() time.Time
	stats  *Stats
	norm   *Normalizer

	mu      sync.RWMutex
	entries map[string]*RegistryEntry
	group   singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithDriver sets the store that materializes registered models. The
// default is the in-memory store.
func WithDriver(d driver.Driver) Option {
	return func(r *Registry) { r.drv = d }
}

// WithLogger sets the logger used for registration warnings and
// normalized failures.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides the time source used by registration timing and
// scope filters.
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) { r.clock = fn }
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:  zerolog.Nop(),
		clock:   time.Now,
		stats:   &Stats{},
		entries: make(map[string]*RegistryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.drv == nil {
		r.drv = memdriver.New()
	}
	r.norm = NewNormalizer(r.logger).WithStats(r.stats)
	return r
}

// Stats returns the registry's counters.
func (r *Registry) Stats() *Stats { return r.stats }

// A RegistryEntry is the stored compiled state of one registered model.
type RegistryEntry struct {
	Name     string
	Tree     *schema.Tree
	Features *synth.FeatureSet
	Handle   driver.Handle

	signature string

	mu      sync.Mutex
	methods map[string]Method
	statics map[string]Static
	helpers map[string]QueryHelper
}

func (e *RegistryEntry) spec() *driver.CollectionSpec {
	return &driver.CollectionSpec{Tree: e.Tree, Features: e.Features}
}

// RegisterOrGet compiles, synthesizes and materializes the model under
// name, or returns the existing entry. It is idempotent per name:
// a second registration returns the first entry unchanged, without
// recompiling, even if the definition differs. A differing definition
// is first-registration-wins and reported as a warning, never merged.
func (r *Registry) RegisterOrGet(ctx context.Context, name string, def []schema.Entry, opts schema.Options) (*Model, error) {
	if name == "" {
		return nil, schema.NewDefinitionError(name, "", "model name cannot be empty")
	}
	if e := r.lookup(name); e != nil {
		return r.hit(e, def), nil
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		if e := r.lookup(name); e != nil {
			return e, nil
		}
		return r.register(ctx, name, def, opts)
	})
	if err != nil {
		return nil, err
	}
	e := v.(*RegistryEntry)
	// Callers coalesced into another registration's flight receive
	// the winner's entry; a diverging definition still counts as a
	// hit on the kept registration.
	if e.signature != schema.Signature(def) {
		return r.hit(e, def), nil
	}
	return r.model(e), nil
}

func (r *Registry) hit(e *RegistryEntry, def []schema.Entry) *Model {
	r.stats.Hits.Add(1)
	if sig := schema.Signature(def); sig != e.signature {
		r.logger.Warn().
			Str("model", e.Name).
			Msg("definition differs from the registered schema; keeping the first registration")
	}
	return r.model(e)
}

func (r *Registry) register(ctx context.Context, name string, def []schema.Entry, opts schema.Options) (*RegistryEntry, error) {
	start := r.clock()
	tree, err := compiler.Compile(name, def, opts)
	if err != nil {
		return nil, err
	}
	features := synth.Synthesize(tree)
	r.stats.CompileDuration.Add(int64(r.clock().Sub(start)))

	for _, w := range tree.Warnings {
		r.logger.Warn().
			Str("model", name).
			Str("field", w.Field).
			Str("token", w.Token).
			Msg(w.Reason)
	}

	e := &RegistryEntry{
		Name:      name,
		Tree:      tree,
		Features:  features,
		signature: schema.Signature(def),
		methods:   make(map[string]Method),
		statics:   make(map[string]Static),
		helpers:   make(map[string]QueryHelper),
	}
	// Materialization is a single call; its failure surfaces to the
	// caller and is not retried here.
	handle, err := r.drv.Materialize(ctx, e.spec())
	if err != nil {
		return nil, fmt.Errorf("mongoo: materialize model %q: %w", name, err)
	}
	e.Handle = handle

	r.mu.Lock()
	r.entries[name] = e
	r.mu.Unlock()
	r.stats.Registered.Add(1)

	r.logger.Info().
		Str("model", name).
		Str("collection", tree.Collection).
		Int("fields", len(tree.Fields)).
		Int("virtuals", len(features.Virtuals)).
		Int("indexes", len(features.Indexes)).
		Int("hooks", len(features.Hooks)).
		Msg("model registered")
	return e, nil
}

func (r *Registry) lookup(name string) *RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

func (r *Registry) model(e *RegistryEntry) *Model {
	return &Model{name: e.Name, entry: e, reg: r}
}

// Get returns the registered model, or a ModelNotFoundError.
func (r *Registry) Get(name string) (*Model, error) {
	e := r.lookup(name)
	if e == nil {
		return nil, NewModelNotFoundError(name)
	}
	return r.model(e), nil
}

// Models returns the registered model names, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Fingerprint returns the sha256 digest of the model's compiled tree
// in its canonical encoded form. Trees that compile to the same
// structure share a fingerprint regardless of how their options were
// spelled, so the digest identifies a schema version across processes.
func (r *Registry) Fingerprint(name string) (string, error) {
	e := r.lookup(name)
	if e == nil {
		return "", NewModelNotFoundError(name)
	}
	return snapshot.Fingerprint(e.Tree)
}

// Reset drops every entry. Compiled state is discarded, not returned
// to; it exists for test isolation and process teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = make(map[string]*RegistryEntry)
	r.mu.Unlock()
}

// An Extension mutates a registered entry's feature set.
type Extension func(*RegistryEntry) error

// Extend applies schema extensions to a registered model. It fails
// with a ModelNotFoundError when the name was never registered.
// Extensions on the same name serialize; different names proceed
// independently. When the store's handle supports late binding the
// updated spec is forwarded to it, otherwise the extension affects
// the stored spec only.
func (r *Registry) Extend(name string, exts ...Extension) error {
	e := r.lookup(name)
	if e == nil {
		return NewModelNotFoundError(name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ext := range exts {
		if err := ext(e); err != nil {
			return fmt.Errorf("mongoo: extend model %q: %w", name, err)
		}
		r.stats.Extensions.Add(1)
	}
	if rb, ok := e.Handle.(driver.Rebinder); ok {
		if err := rb.Rebind(e.spec()); err != nil {
			return fmt.Errorf("mongoo: rebind model %q: %w", name, err)
		}
	} else {
		r.logger.Debug().
			Str("model", name).
			Msg("handle does not support late binding; extension applies to the stored spec only")
	}
	return nil
}

// WithVirtual adds a computed field with a getter and an optional
// setter. It replaces a synthesized virtual of the same name.
func WithVirtual(name string, get virtual.Getter, set virtual.Setter) Extension {
	return func(e *RegistryEntry) error {
		if name == "" {
			return fmt.Errorf("virtual name cannot be empty")
		}
		spec := virtual.Spec{Name: name, Get: get, Set: set}
		for i := range e.Features.Virtuals {
			if e.Features.Virtuals[i].Name == name {
				e.Features.Virtuals[i] = spec
				return nil
			}
		}
		e.Features.Virtuals = append(e.Features.Virtuals, spec)
		return nil
	}
}

// WithHook registers middleware under an operation name ("save",
// "create", "update", "remove", "aggregate", ...) and phase.
func WithHook(operation string, phase hook.Phase, h hook.Hook) Extension {
	return func(e *RegistryEntry) error {
		op, ok := hook.OpByName(operation)
		if !ok {
			return fmt.Errorf("unknown hook operation %q", operation)
		}
		e.Features.Hooks = append(e.Features.Hooks, hook.Spec{
			Op:    op,
			Phase: phase,
			Name:  operation,
			Hook:  h,
		})
		return nil
	}
}

// WithMethod attaches a named instance method.
func WithMethod(name string, fn Method) Extension {
	return func(e *RegistryEntry) error {
		if name == "" || fn == nil {
			return fmt.Errorf("method requires a name and a function")
		}
		e.methods[name] = fn
		return nil
	}
}

// WithStatic attaches a named model-level function.
func WithStatic(name string, fn Static) Extension {
	return func(e *RegistryEntry) error {
		if name == "" || fn == nil {
			return fmt.Errorf("static requires a name and a function")
		}
		e.statics[name] = fn
		return nil
	}
}

// WithQueryHelper attaches a named filter transformer.
func WithQueryHelper(name string, fn QueryHelper) Extension {
	return func(e *RegistryEntry) error {
		if name == "" || fn == nil {
			return fmt.Errorf("query helper requires a name and a function")
		}
		e.helpers[name] = fn
		return nil
	}
}

// WithIndex adds an index specification.
func WithIndex(b *index.Builder) Extension {
	return func(e *RegistryEntry) error {
		d := b.Descriptor()
		if d.Err != nil {
			return d.Err
		}
		e.Features.Indexes = append(e.Features.Indexes, d)
		return nil
	}
}

// WithPlugin applies a plugin: a function receiving the stored tree
// and feature set.
func WithPlugin(p Plugin) Extension {
	return func(e *RegistryEntry) error {
		if p == nil {
			return fmt.Errorf("plugin cannot be nil")
		}
		return p(e.Tree, e.Features)
	}
}

// SyncIndexes creates the model's synthesized and extended indexes on
// the physical store.
func (r *Registry) SyncIndexes(ctx context.Context, name string) error {
	e := r.lookup(name)
	if e == nil {
		return NewModelNotFoundError(name)
	}
	if err := e.Handle.SyncIndexes(ctx); err != nil {
		return r.norm.Normalize("sync indexes", name, "", err)
	}
	return nil
}
