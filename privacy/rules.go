package privacy

import (
	"context"
	"slices"

	"github.com/developer-rs5/easy-mongoo/hook"
)

// Viewer is the authenticated actor behind a request. Applications
// implement it on their own session or principal types.
type Viewer interface {
	// ID returns the actor's identity.
	ID() string
	// Roles returns the actor's granted roles.
	Roles() []string
	// Tenant returns the actor's tenant, or "" outside multi-tenant
	// deployments.
	Tenant() string
}

type viewerCtxKey struct{}

// WithViewer returns a context carrying the viewer.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, v)
}

// ViewerFromContext retrieves the viewer, or nil when the request is
// anonymous.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// StaticViewer is a fixed-identity Viewer for tests and trusted
// service contexts.
type StaticViewer struct {
	UserID    string
	UserRoles []string
	TenantID  string
}

// ID returns the actor's identity.
func (v *StaticViewer) ID() string { return v.UserID }

// Roles returns the actor's granted roles.
func (v *StaticViewer) Roles() []string { return v.UserRoles }

// Tenant returns the actor's tenant.
func (v *StaticViewer) Tenant() string { return v.TenantID }

// DenyIfNoViewer rejects anonymous mutations. Typically the first rule
// of a policy requiring authentication.
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows when the viewer holds the role, abstaining otherwise.
func HasRole(role string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if slices.Contains(viewer.Roles(), role) {
			return Allow
		}
		return Skip
	})
}

// HasAnyRole allows when the viewer holds any of the roles, abstaining
// otherwise.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		granted := viewer.Roles()
		for _, role := range roles {
			if slices.Contains(granted, role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner allows when the mutation's field carries the viewer's
// identity. The field is usually a reference into the actor model,
// such as "author" or "createdBy".
func IsOwner(field string) Rule {
	return RuleFunc(func(ctx context.Context, m hook.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := m.Field(field)
		if !ok {
			return Skip
		}
		owner, _ := value.(string)
		if owner != "" && owner == viewer.ID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule allows when the mutation's tenant field matches the
// viewer's tenant and denies on a mismatch. Documents and viewers
// without a tenant abstain. Pairs with the tenant field of
// contrib/mixin.
func TenantRule(field string) Rule {
	return RuleFunc(func(ctx context.Context, m hook.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		want := viewer.Tenant()
		if want == "" {
			return Skip
		}
		value, ok := m.Field(field)
		if !ok {
			return Skip
		}
		got, _ := value.(string)
		if got == want {
			return Allow
		}
		return Denyf("privacy: tenant mismatch on %s", field)
	})
}
