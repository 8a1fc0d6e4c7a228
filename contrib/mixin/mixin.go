// Package mixin provides reusable entry bundles for model definitions.
//
// A mixin is a group of fields a project declares on many models, such
// as soft deletion markers or tenant scoping, optionally paired with
// the registry extensions that make those fields useful. Register
// splices the entries into a definition and applies the extensions in
// one call:
//
//	posts, err := mixin.Register(ctx, reg, "Post", []mongoo.Entry{
//		mongoo.Token("title", "string!"),
//	}, mongoo.Options{}, mixin.SoftDelete{}, mixin.Tenant{})
//
// Project-specific bundles implement Mixin, or Extender when they also
// carry query helpers, hooks or indexes:
//
//	type Moderated struct{}
//
//	func (Moderated) Entries() []mongoo.Entry {
//		return []mongoo.Entry{
//			mongoo.Token("approved", "boolean"),
//			mongoo.Ref("approvedBy", "Moderator"),
//		}
//	}
package mixin

import (
	"context"
	"time"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/schema/field"
	"github.com/developer-rs5/easy-mongoo/schema/index"
)

// Field names the bundled mixins declare.
const (
	FieldDeleted   = "deleted"
	FieldDeletedAt = "deletedAt"
	FieldTenant    = "tenantId"
	FieldCreatedBy = "createdBy"
	FieldUpdatedBy = "updatedBy"
)

// A Mixin contributes a reusable group of entries to a model
// definition.
type Mixin interface {
	Entries() []mongoo.Entry
}

// An Extender is a mixin that also carries registry extensions,
// applied after the model is registered.
type Extender interface {
	Mixin
	Extensions() []mongoo.Extension
}

// Extend appends the mixins' entries to a definition. The definition's
// own entries come first, then each mixin's in argument order.
func Extend(def []mongoo.Entry, mixins ...Mixin) []mongoo.Entry {
	out := make([]mongoo.Entry, 0, len(def))
	out = append(out, def...)
	for _, m := range mixins {
		out = append(out, m.Entries()...)
	}
	return out
}

// Register registers the model with the mixins' entries spliced into
// def and their extensions applied.
func Register(ctx context.Context, reg *mongoo.Registry, name string, def []mongoo.Entry, opts mongoo.Options, mixins ...Mixin) (*mongoo.Model, error) {
	m, err := reg.RegisterOrGet(ctx, name, Extend(def, mixins...), opts)
	if err != nil {
		return nil, err
	}
	for _, mx := range mixins {
		ext, ok := mx.(Extender)
		if !ok {
			continue
		}
		if err := reg.Extend(name, ext.Extensions()...); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SoftDelete marks documents deleted instead of removing them. It adds
// a deleted flag and a deletedAt stamp, and registers the "notDeleted"
// query helper narrowing a filter to live documents:
//
//	filter, _ := posts.ApplyHelper("notDeleted", nil)
//	live, err := posts.Find(ctx, filter)
type SoftDelete struct{}

// Entries of the soft delete mixin.
func (SoftDelete) Entries() []mongoo.Entry {
	return []mongoo.Entry{
		mongoo.Field(field.Bool(FieldDeleted).Default(false)),
		mongoo.Field(field.Time(FieldDeletedAt)),
	}
}

// Extensions of the soft delete mixin.
func (SoftDelete) Extensions() []mongoo.Extension {
	return []mongoo.Extension{
		mongoo.WithQueryHelper("notDeleted", func(filter mongoo.Document, _ ...any) mongoo.Document {
			return merge(filter, mongoo.Document{FieldDeleted: mongoo.Document{"$ne": true}})
		}),
	}
}

var _ Extender = (*SoftDelete)(nil)

// MarkDeleted is the change set flagging a document deleted at now,
// for UpdateByID.
func MarkDeleted(now time.Time) mongoo.Document {
	return mongoo.Document{FieldDeleted: true, FieldDeletedAt: now}
}

// Tenant pins every document to one tenant. The tenant field is
// required and immutable, indexed for per-tenant scans, and the
// "forTenant" query helper narrows a filter to one tenant:
//
//	filter, _ := orders.ApplyHelper("forTenant", nil, "acme")
//	rows, err := orders.Find(ctx, filter)
type Tenant struct{}

// Entries of the tenant mixin.
func (Tenant) Entries() []mongoo.Entry {
	return []mongoo.Entry{
		mongoo.Field(field.String(FieldTenant).Required().Immutable().NotEmpty()),
	}
}

// Extensions of the tenant mixin.
func (Tenant) Extensions() []mongoo.Extension {
	return []mongoo.Extension{
		mongoo.WithIndex(index.Fields(FieldTenant)),
		mongoo.WithQueryHelper("forTenant", func(filter mongoo.Document, args ...any) mongoo.Document {
			if len(args) == 0 {
				return filter
			}
			return merge(filter, mongoo.Document{FieldTenant: args[0]})
		}),
	}
}

var _ Extender = (*Tenant)(nil)

// Audit records which actor created and last touched a document, as
// references into the actor model. The zero value references "User".
type Audit struct {
	// Model is the referenced actor model.
	Model string
}

// Entries of the audit mixin.
func (a Audit) Entries() []mongoo.Entry {
	model := a.Model
	if model == "" {
		model = "User"
	}
	return []mongoo.Entry{
		mongoo.Ref(FieldCreatedBy, model),
		mongoo.Ref(FieldUpdatedBy, model),
	}
}

var _ Mixin = Audit{}

// merge overlays add onto filter without mutating either.
func merge(filter, add mongoo.Document) mongoo.Document {
	out := make(mongoo.Document, len(filter)+len(add))
	for k, v := range filter {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}
