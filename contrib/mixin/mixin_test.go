package mixin

import (
	"context"
	"testing"
	"time"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtend(t *testing.T) {
	t.Parallel()

	def := Extend([]mongoo.Entry{
		mongoo.Token("title", "string!"),
	}, SoftDelete{}, Audit{})

	names := make([]string, 0, len(def))
	for _, e := range def {
		names = append(names, e.EntryName())
	}
	assert.Equal(t, []string{"title", FieldDeleted, FieldDeletedAt, FieldCreatedBy, FieldUpdatedBy}, names)
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	reg := mongoo.NewRegistry()

	posts, err := Register(ctx, reg, "Post", []mongoo.Entry{
		mongoo.Token("title", "string!"),
	}, mongoo.Options{}, SoftDelete{})
	require.NoError(t, err)

	tree := posts.Tree()
	assert.True(t, tree.HasField(FieldDeleted))
	assert.True(t, tree.HasField(FieldDeletedAt))

	kept, err := posts.Create(ctx, mongoo.Document{"title": "kept"})
	require.NoError(t, err)
	assert.Equal(t, false, kept[FieldDeleted])

	gone, err := posts.Create(ctx, mongoo.Document{"title": "gone"})
	require.NoError(t, err)
	goneID, _ := gone[schema.IdentityField].(string)
	require.NotEmpty(t, goneID)

	_, err = posts.UpdateByID(ctx, goneID, MarkDeleted(time.Now().UTC()))
	require.NoError(t, err)

	filter, err := posts.ApplyHelper("notDeleted", nil)
	require.NoError(t, err)

	live, err := posts.Find(ctx, filter)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "kept", live[0]["title"])
}

func TestTenant(t *testing.T) {
	ctx := context.Background()
	reg := mongoo.NewRegistry()

	orders, err := Register(ctx, reg, "Order", []mongoo.Entry{
		mongoo.Token("sku", "string!"),
	}, mongoo.Options{}, Tenant{})
	require.NoError(t, err)

	_, err = orders.Create(ctx, mongoo.Document{"sku": "untagged"})
	require.Error(t, err)

	first, err := orders.Create(ctx, mongoo.Document{"sku": "a-1", FieldTenant: "acme"})
	require.NoError(t, err)
	_, err = orders.Create(ctx, mongoo.Document{"sku": "a-2", FieldTenant: "acme"})
	require.NoError(t, err)
	_, err = orders.Create(ctx, mongoo.Document{"sku": "g-1", FieldTenant: "globex"})
	require.NoError(t, err)

	filter, err := orders.ApplyHelper("forTenant", nil, "acme")
	require.NoError(t, err)
	acme, err := orders.Find(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	assert.NotNil(t, orders.Features().Index("tenantId_1"))

	id, _ := first[schema.IdentityField].(string)
	moved, err := orders.UpdateByID(ctx, id, mongoo.Document{FieldTenant: "globex"})
	require.NoError(t, err)
	assert.Equal(t, "acme", moved[FieldTenant], "tenant field is immutable")
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	reg := mongoo.NewRegistry()

	_, err := reg.RegisterOrGet(ctx, "User", []mongoo.Entry{
		mongoo.Token("name", "string!"),
	}, mongoo.Options{})
	require.NoError(t, err)

	tasks, err := Register(ctx, reg, "Task", []mongoo.Entry{
		mongoo.Token("title", "string!"),
	}, mongoo.Options{}, Audit{})
	require.NoError(t, err)

	created := tasks.Tree().Lookup(FieldCreatedBy)
	require.NotNil(t, created)
	assert.Equal(t, schema.KindRef, created.Kind)
	assert.Equal(t, "User", created.Ref)
	assert.True(t, tasks.Tree().HasField(FieldUpdatedBy))

	entries := Audit{Model: "Admin"}.Entries()
	require.Len(t, entries, 2)
	ref, ok := entries[0].(*schema.RefEntry)
	require.True(t, ok)
	assert.Equal(t, "Admin", ref.Model())
}

func TestRegisterRedeclaredMixinField(t *testing.T) {
	ctx := context.Background()
	reg := mongoo.NewRegistry()

	_, err := Register(ctx, reg, "Post", []mongoo.Entry{
		mongoo.Token("deleted", "boolean"),
	}, mongoo.Options{}, SoftDelete{})
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base := mongoo.Document{"status": "open"}
	out := merge(base, mongoo.Document{FieldTenant: "acme"})

	assert.Equal(t, mongoo.Document{"status": "open", FieldTenant: "acme"}, out)
	assert.NotContains(t, base, FieldTenant)
}
