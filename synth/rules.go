package synth

import (
	"fmt"
	"strings"
	"time"

	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/index"
	"github.com/developer-rs5/easy-mongoo/schema/virtual"
)

// A Rule is one step of the synthesis battery: a named shape predicate
// over a tree and the features it contributes on match. Rules never
// fail; a tree that does not match is skipped.
type Rule struct {
	Name  string
	Match func(*schema.Tree) bool
	Apply func(*schema.Tree, *FeatureSet)
}

const saveOps = hook.OpCreate | hook.OpUpdate | hook.OpUpdateOne

// Rules returns the synthesis battery in evaluation order: virtuals,
// then indexes, then hooks, then query scopes. The slice is freshly
// built on each call.
func Rules() []Rule {
	return []Rule{
		{
			Name: "identityVirtual",
			Match: func(t *schema.Tree) bool {
				return virtualFree(t, t.Options.IdentityAlias())
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				id := identityField(t)
				set.Virtuals = append(set.Virtuals, virtual.Spec{
					Name: t.Options.IdentityAlias(),
					Get: func(doc schema.Document) any {
						v, ok := doc[id]
						if !ok || v == nil {
							return nil
						}
						return schema.IdentityString(v)
					},
				})
			},
		},
		{
			Name: "fullNameVirtual",
			Match: func(t *schema.Tree) bool {
				s := detect(t)
				return s.firstName != "" && s.lastName != "" && virtualFree(t, "fullName")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				s := detect(t)
				set.Virtuals = append(set.Virtuals, fullNameVirtual(s.firstName, s.lastName))
			},
		},
		{
			Name: "ageVirtual",
			Match: func(t *schema.Tree) bool {
				return detect(t).birthDate != "" && virtualFree(t, "age")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				birth := detect(t).birthDate
				set.Virtuals = append(set.Virtuals, virtual.Spec{
					Name: "age",
					Get: func(doc schema.Document) any {
						b, ok := doc[birth].(time.Time)
						if !ok {
							return nil
						}
						return AgeAt(b, time.Now())
					},
				})
			},
		},
		{
			Name: "formattedTimestamps",
			Match: func(t *schema.Tree) bool {
				return t.Timestamps != nil
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				for _, f := range []string{t.Timestamps.CreatedAt, t.Timestamps.UpdatedAt} {
					name := f + "Formatted"
					if !virtualFree(t, name) {
						continue
					}
					set.Virtuals = append(set.Virtuals, formattedDateVirtual(name, f))
				}
			},
		},
		{
			Name: "textIndex",
			Match: func(t *schema.Tree) bool {
				return len(detect(t).textFields()) > 0
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				s := detect(t)
				b := index.Text(s.textFields()...)
				if s.name != "" {
					b.Weight(s.name, TextWeightName)
				}
				if s.title != "" {
					b.Weight(s.title, TextWeightTitle)
				}
				if s.description != "" {
					b.Weight(s.description, TextWeightDescription)
				}
				appendIndex(t, set, b.Descriptor())
			},
		},
		{
			Name: "statusRecencyIndex",
			Match: func(t *schema.Tree) bool {
				return detect(t).status != "" && t.Timestamps != nil
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				s := detect(t)
				created := t.Timestamps.CreatedAt
				appendIndex(t, set, index.Fields(s.status, created).Desc(created).Descriptor())
			},
		},
		{
			Name: "categoryPriceIndex",
			Match: func(t *schema.Tree) bool {
				s := detect(t)
				return s.category != "" && s.price != ""
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				s := detect(t)
				appendIndex(t, set, index.Fields(s.category, s.price).Desc(s.price).Descriptor())
			},
		},
		{
			Name: "ownerRecencyIndex",
			Match: func(t *schema.Tree) bool {
				return detect(t).owner != "" && t.Timestamps != nil
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				s := detect(t)
				created := t.Timestamps.CreatedAt
				appendIndex(t, set, index.Fields(s.owner, created).Desc(created).Descriptor())
			},
		},
		{
			Name: "ttlIndex",
			Match: func(t *schema.Tree) bool {
				return detect(t).expiry != ""
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				appendIndex(t, set, index.TTL(detect(t).expiry, 0).Descriptor())
			},
		},
		{
			Name: "geoIndex",
			Match: func(t *schema.Tree) bool {
				return detect(t).location != ""
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				appendIndex(t, set, index.Geo(detect(t).location).Descriptor())
			},
		},
		{
			Name: "activePartialIndex",
			Match: func(t *schema.Tree) bool {
				return detect(t).activeFlag != ""
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				flag := detect(t).activeFlag
				b := index.Fields(flag).Partial(map[string]any{flag: true})
				appendIndex(t, set, b.Descriptor())
			},
		},
		{
			Name: "uniqueFieldIndexes",
			Match: func(t *schema.Tree) bool {
				return len(detect(t).uniques) > 0
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				for _, f := range detect(t).uniques {
					appendIndex(t, set, index.Fields(f).Unique().Descriptor())
				}
			},
		},
		{
			Name: "slugHook",
			Match: func(t *schema.Tree) bool {
				return detect(t).slugSource() != "" && hookFree(t, "slug")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				set.Hooks = append(set.Hooks, hook.Spec{
					Op:    saveOps,
					Phase: hook.Pre,
					Name:  "slug",
					Hook:  slugHook(detect(t).slugSource()),
				})
			},
		},
		{
			Name: "passwordHashHook",
			Match: func(t *schema.Tree) bool {
				return detect(t).password != "" && hookFree(t, "passwordHash")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				set.Hooks = append(set.Hooks, hook.Spec{
					Op:    saveOps,
					Phase: hook.Pre,
					Name:  "passwordHash",
					Hook:  hashHook(detect(t).password),
				})
			},
		},
		{
			Name: "touchHook",
			Match: func(t *schema.Tree) bool {
				return t.Timestamps != nil && hookFree(t, "touch")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				set.Hooks = append(set.Hooks, hook.Spec{
					Op:    hook.OpUpdate | hook.OpUpdateOne,
					Phase: hook.Pre,
					Name:  "touch",
					Hook:  touchHook(t.Timestamps.UpdatedAt),
				})
			},
		},
		{
			Name: "observeHook",
			Match: func(t *schema.Tree) bool {
				return hookFree(t, "observe")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				set.Hooks = append(set.Hooks, hook.Spec{
					Op:    saveOps | hook.OpDelete | hook.OpDeleteOne,
					Phase: hook.Post,
					Name:  "observe",
					Hook:  observeHook(),
				})
			},
		},
		{
			Name: "softDeleteStage",
			Match: func(t *schema.Tree) bool {
				return detect(t).deletedFlag != "" && hookFree(t, "softDelete")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				flag := detect(t).deletedFlag
				set.Hooks = append(set.Hooks, hook.Spec{
					Op:    hook.OpAggregate,
					Phase: hook.Pre,
					Name:  "softDelete",
					Stage: schema.Document{"$match": schema.Document{flag: schema.Document{"$ne": true}}},
				})
			},
		},
		{
			Name: "recentScope",
			Match: func(t *schema.Tree) bool {
				return t.Timestamps != nil && !t.Declared.HasHelper("recent")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				created := t.Timestamps.CreatedAt
				set.Scopes = append(set.Scopes, Scope{
					Name: "recent",
					Filter: func(now time.Time) schema.Document {
						return schema.Document{created: schema.Document{"$gte": now.Add(-RecentWindow)}}
					},
				})
			},
		},
		{
			Name: "popularScope",
			Match: func(t *schema.Tree) bool {
				return detect(t).views != "" && !t.Declared.HasHelper("popular")
			},
			Apply: func(t *schema.Tree, set *FeatureSet) {
				views := detect(t).views
				set.Scopes = append(set.Scopes, Scope{
					Name: "popular",
					Filter: func(time.Time) schema.Document {
						return schema.Document{views: schema.Document{"$gte": PopularThreshold}}
					},
				})
			},
		},
	}
}

// virtualFree reports if neither a declared field nor a declared
// virtual occupies the name.
func virtualFree(t *schema.Tree, name string) bool {
	return !t.HasField(name) && !t.Declared.HasVirtual(name)
}

func hookFree(t *schema.Tree, name string) bool {
	return !t.Declared.HasHook(name)
}

// appendIndex adds an index unless the user declared one under the
// same derived name.
func appendIndex(t *schema.Tree, set *FeatureSet, idx *index.Descriptor) {
	if t.Declared.HasIndex(idx.Name()) {
		return
	}
	set.Indexes = append(set.Indexes, idx)
}

func identityField(t *schema.Tree) string {
	if t.Identity != "" {
		return t.Identity
	}
	return schema.IdentityField
}

func fullNameVirtual(first, last string) virtual.Spec {
	return virtual.Spec{
		Name: "fullName",
		Get: func(doc schema.Document) any {
			var parts []string
			for _, f := range []string{first, last} {
				if s, ok := doc[f].(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) == 0 {
				return nil
			}
			return strings.Join(parts, " ")
		},
		Set: func(doc schema.Document, v any) error {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("fullName must be a string, got %T", v)
			}
			head, tail, found := strings.Cut(strings.TrimSpace(s), " ")
			doc[first] = head
			if found {
				doc[last] = tail
			}
			return nil
		},
	}
}

func formattedDateVirtual(name, source string) virtual.Spec {
	return virtual.Spec{
		Name: name,
		Get: func(doc schema.Document) any {
			ts, ok := doc[source].(time.Time)
			if !ok {
				return nil
			}
			return ts.Format(DateDisplayFormat)
		},
	}
}
