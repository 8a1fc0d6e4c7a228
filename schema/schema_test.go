package schema_test

import (
	"errors"
	"testing"

	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentClone(t *testing.T) {
	t.Parallel()

	doc := schema.Document{
		"name": "Ada",
		"address": map[string]any{
			"city": "London",
		},
		"tags": []any{"a", "b"},
	}
	c := doc.Clone()
	c["name"] = "Grace"
	c["address"].(map[string]any)["city"] = "New York"
	c["tags"].([]any)[0] = "z"

	assert.Equal(t, "Ada", doc["name"])
	assert.Equal(t, "London", doc["address"].(map[string]any)["city"])
	assert.Equal(t, "a", doc["tags"].([]any)[0])

	assert.Nil(t, schema.Document(nil).Clone())
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	var o schema.Options
	assert.True(t, o.TimestampsEnabled())
	assert.True(t, o.StripEnabled())
	assert.Equal(t, "id", o.IdentityAlias())

	o = schema.Options{
		Timestamps:          schema.Bool(false),
		StripInternalFields: schema.Bool(false),
		SerializeIdentityAs: "uid",
	}
	assert.False(t, o.TimestampsEnabled())
	assert.False(t, o.StripEnabled())
	assert.Equal(t, "uid", o.IdentityAlias())
}

func TestEntryVariants(t *testing.T) {
	t.Parallel()

	entries := []schema.Entry{
		schema.Token("name", "string!"),
		schema.Field(field.Number("age").Range(0, 150)),
		schema.Object("address", schema.Token("city", "string")),
		schema.List("tags", schema.Token("", "string")),
		schema.Ref("owner", "User"),
	}

	assert.Equal(t, "name", entries[0].EntryName())
	assert.Equal(t, "age", entries[1].EntryName())
	assert.Equal(t, "address", entries[2].EntryName())
	assert.Equal(t, "tags", entries[3].EntryName())
	assert.Equal(t, "owner", entries[4].EntryName())

	tok, ok := entries[0].(*schema.TokenEntry)
	require.True(t, ok)
	assert.Equal(t, "string!", tok.Token())

	ref, ok := entries[4].(*schema.RefEntry)
	require.True(t, ok)
	assert.Equal(t, "User", ref.Model())
}

func TestSignature(t *testing.T) {
	t.Parallel()

	a := schema.Signature([]schema.Entry{
		schema.Token("name", "string!"),
		schema.Token("email", "email!!"),
	})
	b := schema.Signature([]schema.Entry{
		schema.Token("name", "string!"),
		schema.Token("email", "email!!"),
	})
	c := schema.Signature([]schema.Entry{
		schema.Token("name", "string!"),
		schema.Token("email", "email"),
	})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	nested := schema.Signature([]schema.Entry{
		schema.Object("address", schema.Token("city", "string")),
		schema.List("tags", schema.Token("", "string")),
		schema.Ref("owner", "User"),
	})
	assert.Contains(t, nested, "o:address(")
	assert.Contains(t, nested, "l:tags(")
	assert.Contains(t, nested, "r:owner:User")
}

func TestTreeAccessors(t *testing.T) {
	t.Parallel()

	tree := &schema.Tree{
		Name:     "User",
		Identity: schema.IdentityField,
		Fields: []*schema.Node{
			{Name: "name", Kind: schema.KindLeaf, Desc: field.String("name").Descriptor()},
			{Name: "owner", Kind: schema.KindRef, Ref: "Team", Desc: field.ObjectID("owner").Ref("Team").Descriptor()},
			{Name: "address", Kind: schema.KindObject, Tree: &schema.Tree{Name: "address"}},
		},
		Timestamps: &schema.Timestamps{CreatedAt: schema.CreatedAtField, UpdatedAt: schema.UpdatedAtField},
	}

	assert.NotNil(t, tree.Lookup("name"))
	assert.Nil(t, tree.Lookup("missing"))
	assert.True(t, tree.HasField("createdAt"))
	assert.True(t, tree.HasField("_id"))
	assert.False(t, tree.HasField("nope"))
	assert.Equal(t, []string{"name", "owner", "address"}, tree.FieldNames())

	leaves := tree.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, "name", leaves[0].Name)
	assert.Equal(t, "owner", leaves[1].Name)
}

func TestDefinitionError(t *testing.T) {
	t.Parallel()

	err := schema.NewDefinitionError("User", "age", "min requires a numeric type")
	assert.EqualError(t, err, `mongoo: invalid schema definition: model "User", field "age": min requires a numeric type`)
	assert.True(t, errors.Is(err, schema.ErrInvalidDefinition))
	assert.True(t, schema.IsDefinitionError(err))

	cause := errors.New("boom")
	wrapped := schema.WrapDefinitionError("User", "age", cause)
	assert.True(t, errors.Is(wrapped, cause))
	assert.False(t, schema.IsDefinitionError(errors.New("other")))
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "leaf", schema.KindLeaf.String())
	assert.Equal(t, "object", schema.KindObject.String())
	assert.Equal(t, "list", schema.KindList.String())
	assert.Equal(t, "ref", schema.KindRef.String())
}
