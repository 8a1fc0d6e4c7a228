// Package synth derives features from the shape of a compiled schema
// tree: computed virtual fields, index specifications, lifecycle
// hooks, and query scopes.
//
// Synthesis runs a fixed, ordered battery of shape-detection rules
// (see Rules). Each rule is independent, matches on the names and
// types of the tree's fields, and short-circuits when the feature it
// would add collides with a user-declared field, virtual, hook, or
// index of the same name. The whole pass is a pure function of the
// tree: re-running it on an unchanged tree yields a feature set equal
// by value, and a shape that matches no rule is simply skipped.
package synth

import (
	"time"

	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/index"
	"github.com/developer-rs5/easy-mongoo/schema/virtual"
)

// Fixed synthesis constants.
const (
	// Text-index weights by shape.
	TextWeightName        = 10
	TextWeightTitle       = 5
	TextWeightDescription = 1

	// DaysPerYear is the fixed year length used by the age virtual.
	DaysPerYear = 365.25

	// RecentWindow bounds the "recent" query scope.
	RecentWindow = 7 * 24 * time.Hour

	// PopularThreshold is the minimum view count for the "popular"
	// query scope.
	PopularThreshold = 100

	// DateDisplayFormat renders the formatted timestamp virtuals.
	DateDisplayFormat = "January 2, 2006"

	// SlugField is the document field the slug hook writes.
	SlugField = "slug"
)

// A Scope is a named, reusable query filter attached to a model.
type Scope struct {
	Name string
	// Filter builds the match document relative to the given time.
	Filter func(now time.Time) schema.Document
}

// A FeatureSet holds everything synthesis derived from one tree.
type FeatureSet struct {
	Virtuals []virtual.Spec
	Indexes  []*index.Descriptor
	Hooks    []hook.Spec
	Scopes   []Scope
}

// Synthesize runs the rule battery over the tree and collects the
// derived features. A nil tree yields an empty set.
func Synthesize(tree *schema.Tree) *FeatureSet {
	set := &FeatureSet{}
	if tree == nil {
		return set
	}
	for _, r := range Rules() {
		if r.Match(tree) {
			r.Apply(tree, set)
		}
	}
	return set
}

// Virtual returns the named virtual spec, or nil.
func (f *FeatureSet) Virtual(name string) *virtual.Spec {
	for i := range f.Virtuals {
		if f.Virtuals[i].Name == name {
			return &f.Virtuals[i]
		}
	}
	return nil
}

// Index returns the index with the given derived name, or nil.
func (f *FeatureSet) Index(name string) *index.Descriptor {
	for _, idx := range f.Indexes {
		if idx.Name() == name {
			return idx
		}
	}
	return nil
}

// HookSpec returns the named hook spec, or nil.
func (f *FeatureSet) HookSpec(name string) *hook.Spec {
	for i := range f.Hooks {
		if f.Hooks[i].Name == name {
			return &f.Hooks[i]
		}
	}
	return nil
}

// Scope returns the named query scope, or nil.
func (f *FeatureSet) Scope(name string) *Scope {
	for i := range f.Scopes {
		if f.Scopes[i].Name == name {
			return &f.Scopes[i]
		}
	}
	return nil
}

// Stages returns the pipeline stages of all aggregation hooks, in
// declaration order.
func (f *FeatureSet) Stages() []schema.Document {
	var out []schema.Document
	for _, h := range f.Hooks {
		if h.Stage != nil {
			out = append(out, h.Stage)
		}
	}
	return out
}

// Equal reports if two feature sets are equal by value. Function
// members (virtual getters, hook middleware, scope filters) have no
// value identity in Go and compare by name, position and presence.
func (f *FeatureSet) Equal(o *FeatureSet) bool {
	if f == nil || o == nil {
		return f == o
	}
	if len(f.Virtuals) != len(o.Virtuals) || len(f.Indexes) != len(o.Indexes) ||
		len(f.Hooks) != len(o.Hooks) || len(f.Scopes) != len(o.Scopes) {
		return false
	}
	for i := range f.Virtuals {
		a, b := f.Virtuals[i], o.Virtuals[i]
		if a.Name != b.Name || (a.Get == nil) != (b.Get == nil) || (a.Set == nil) != (b.Set == nil) {
			return false
		}
	}
	for i := range f.Indexes {
		if !f.Indexes[i].Equal(o.Indexes[i]) {
			return false
		}
	}
	for i := range f.Hooks {
		a, b := f.Hooks[i], o.Hooks[i]
		if a.Name != b.Name || a.Op != b.Op || a.Phase != b.Phase {
			return false
		}
		if (a.Stage == nil) != (b.Stage == nil) {
			return false
		}
		if a.Stage != nil && !equalDocument(a.Stage, b.Stage) {
			return false
		}
	}
	for i := range f.Scopes {
		if f.Scopes[i].Name != o.Scopes[i].Name {
			return false
		}
	}
	return true
}

func equalDocument(a, b schema.Document) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		am, aok := av.(schema.Document)
		bm, bok := bv.(schema.Document)
		if aok != bok {
			return false
		}
		if aok {
			if !equalDocument(am, bm) {
				return false
			}
			continue
		}
		if av != bv {
			return false
		}
	}
	return true
}

// AgeAt computes elapsed whole years between birth and now using the
// fixed 365.25-day year. The fraction truncates, so an age ticks over
// exactly at each 365.25-day boundary; a birth date in the future
// yields zero.
func AgeAt(birth, now time.Time) int {
	if now.Before(birth) {
		return 0
	}
	days := now.Sub(birth).Hours() / 24
	return int(days / DaysPerYear)
}
