package privacy

import (
	"context"
	"testing"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewerCtx(id string, roles ...string) context.Context {
	return WithViewer(context.Background(), &StaticViewer{UserID: id, UserRoles: roles})
}

func TestViewerContext(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ViewerFromContext(context.Background()))

	v := &StaticViewer{UserID: "u1", UserRoles: []string{"admin"}, TenantID: "acme"}
	got := ViewerFromContext(WithViewer(context.Background(), v))
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID())
	assert.Equal(t, []string{"admin"}, got.Roles())
	assert.Equal(t, "acme", got.Tenant())
}

func TestDenyIfNoViewer(t *testing.T) {
	t.Parallel()

	rule := DenyIfNoViewer()
	m := newMutation(hook.OpCreate)

	assert.ErrorIs(t, rule.EvalMutation(context.Background(), m), Deny)
	assert.ErrorIs(t, rule.EvalMutation(viewerCtx("u1"), m), Skip)
}

func TestHasRole(t *testing.T) {
	t.Parallel()

	m := newMutation(hook.OpCreate)
	ctx := viewerCtx("u1", "editor")

	assert.ErrorIs(t, HasRole("editor").EvalMutation(ctx, m), Allow)
	assert.ErrorIs(t, HasRole("admin").EvalMutation(ctx, m), Skip)
	assert.ErrorIs(t, HasRole("editor").EvalMutation(context.Background(), m), Skip)
}

func TestHasAnyRole(t *testing.T) {
	t.Parallel()

	m := newMutation(hook.OpCreate)
	ctx := viewerCtx("u1", "editor")

	assert.ErrorIs(t, HasAnyRole("admin", "editor").EvalMutation(ctx, m), Allow)
	assert.ErrorIs(t, HasAnyRole("admin", "owner").EvalMutation(ctx, m), Skip)
}

func TestIsOwner(t *testing.T) {
	t.Parallel()

	rule := IsOwner("author")
	m := hook.NewMutation("Post", hook.OpUpdateOne, schema.Document{"author": "u1"})

	assert.ErrorIs(t, rule.EvalMutation(viewerCtx("u1"), m), Allow)
	assert.ErrorIs(t, rule.EvalMutation(viewerCtx("u2"), m), Skip)
	assert.ErrorIs(t, rule.EvalMutation(context.Background(), m), Skip)

	blank := hook.NewMutation("Post", hook.OpUpdateOne, schema.Document{})
	assert.ErrorIs(t, rule.EvalMutation(viewerCtx("u1"), blank), Skip)
}

func TestTenantRule(t *testing.T) {
	t.Parallel()

	rule := TenantRule("tenantId")
	m := hook.NewMutation("Order", hook.OpCreate, schema.Document{"tenantId": "acme"})

	acme := WithViewer(context.Background(), &StaticViewer{UserID: "u1", TenantID: "acme"})
	globex := WithViewer(context.Background(), &StaticViewer{UserID: "u2", TenantID: "globex"})
	notenant := viewerCtx("u3")

	assert.ErrorIs(t, rule.EvalMutation(acme, m), Allow)
	assert.ErrorIs(t, rule.EvalMutation(globex, m), Deny)
	assert.ErrorIs(t, rule.EvalMutation(notenant, m), Skip)
	assert.ErrorIs(t, rule.EvalMutation(context.Background(), m), Skip)

	blank := hook.NewMutation("Order", hook.OpCreate, schema.Document{})
	assert.ErrorIs(t, rule.EvalMutation(acme, blank), Skip)
}

// TestEnforce exercises a policy wired into a live registry, covering the
// default save and remove operations.
func TestEnforce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := mongoo.NewRegistry()

	_, err := reg.RegisterOrGet(ctx, "User", []mongoo.Entry{
		mongoo.Token("name", "string!"),
	}, mongoo.Options{})
	require.NoError(t, err)

	posts, err := reg.RegisterOrGet(ctx, "Post", []mongoo.Entry{
		mongoo.Token("title", "string!"),
		mongoo.Ref("author", "User"),
	}, mongoo.Options{})
	require.NoError(t, err)

	policy := Policy{
		DenyIfNoViewer(),
		HasRole("admin"),
		IsOwner("author"),
		AlwaysDenyRule(),
	}
	require.NoError(t, reg.Extend("Post", Enforce(policy)...))

	_, err = posts.Create(ctx, mongoo.Document{"title": "anon", "author": "u1"})
	assert.ErrorIs(t, err, Deny)

	admin := WithViewer(ctx, &StaticViewer{UserID: "root", UserRoles: []string{"admin"}})
	created, err := posts.Create(admin, mongoo.Document{"title": "by admin", "author": "u1"})
	require.NoError(t, err)

	owner := WithViewer(ctx, &StaticViewer{UserID: "u1"})
	_, err = posts.Create(owner, mongoo.Document{"title": "by owner", "author": "u1"})
	require.NoError(t, err)

	intruder := WithViewer(ctx, &StaticViewer{UserID: "u2"})
	_, err = posts.Create(intruder, mongoo.Document{"title": "stolen", "author": "u1"})
	assert.ErrorIs(t, err, Deny)

	id, _ := created[schema.IdentityField].(string)
	require.NotEmpty(t, id)
	assert.ErrorIs(t, posts.DeleteByID(ctx, id), Deny)
	require.NoError(t, posts.DeleteByID(admin, id))

	_, err = posts.FindByID(ctx, id)
	assert.Error(t, err)
}
