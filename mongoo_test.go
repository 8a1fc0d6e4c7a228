package mongoo_test

import (
	"context"
	"testing"
	"time"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserLifecycle drives one model from shorthand definition to
// stored documents: compilation, synthesis, the full write pipeline
// and the normalized error taxonomy.
func TestUserLifecycle(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	user, err := reg.RegisterOrGet(ctx, "User", []mongoo.Entry{
		mongoo.Token("name", "string!"),
		mongoo.Token("email", "email!!"),
		mongoo.Token("age", "number?"),
	}, mongoo.Options{})
	require.NoError(t, err)

	// Synthesis added the unique email index and no full-name
	// virtual, since no last-name-shaped field exists.
	assert.Nil(t, user.Features().Virtual("fullName"))
	idx := user.Features().Index("email_1")
	require.NotNil(t, idx)
	assert.True(t, idx.Unique)

	created, err := user.Create(ctx, mongoo.Document{
		"name":  "  Ada  ",
		"email": "Ada@Example.COM",
		"age":   36,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", created["name"], "text fields are trimmed")
	assert.Equal(t, "ada@example.com", created["email"], "email fields are lowercased")
	id, ok := created["_id"].(string)
	require.True(t, ok)
	assert.IsType(t, time.Time{}, created["createdAt"])
	assert.IsType(t, time.Time{}, created["updatedAt"])

	t.Run("DuplicateKey", func(t *testing.T) {
		_, err := user.Create(ctx, mongoo.Document{"name": "Eve", "email": "ada@example.com"})
		require.Error(t, err)
		assert.True(t, mongoo.IsDuplicateKey(err))
		assert.Equal(t, "email already exists. Please use a different value.", err.Error())
	})

	t.Run("ValidationFailed", func(t *testing.T) {
		_, err := user.Create(ctx, mongoo.Document{"email": "eve@example.com"})
		require.Error(t, err)
		assert.True(t, mongoo.IsValidationFailed(err))
		assert.Equal(t, "Validation failed: name is required", err.Error())

		_, err = user.Create(ctx, mongoo.Document{"name": "Eve", "email": "not-an-email"})
		require.Error(t, err)
		assert.True(t, mongoo.IsValidationFailed(err))
		assert.Equal(t, "Validation failed: email has an invalid format", err.Error())
	})

	t.Run("InvalidIdentifier", func(t *testing.T) {
		_, err := user.FindByID(ctx, "not-a-uuid")
		require.Error(t, err)
		assert.True(t, mongoo.IsInvalidIdentifier(err))
		assert.Equal(t, "Invalid ID format", err.Error())
	})

	t.Run("NotFoundOnlyForOrFail", func(t *testing.T) {
		missing := "00000000-0000-0000-0000-000000000000"
		doc, err := user.FindByID(ctx, missing)
		require.NoError(t, err)
		assert.Nil(t, doc)

		_, err = user.FindByIDOrFail(ctx, missing)
		require.Error(t, err)
		assert.True(t, mongoo.IsNotFound(err))
		assert.Equal(t, "User with ID "+missing+" not found", err.Error())
	})

	t.Run("Update", func(t *testing.T) {
		updated, err := user.UpdateByID(ctx, id, mongoo.Document{"age": 37})
		require.NoError(t, err)
		assert.Equal(t, 37, updated["age"])
		assert.Equal(t, "Ada", updated["name"])

		doc, err := user.UpdateByID(ctx, "00000000-0000-0000-0000-000000000000", mongoo.Document{"age": 1})
		require.NoError(t, err)
		assert.Nil(t, doc)

		_, err = user.UpdateByIDOrFail(ctx, "00000000-0000-0000-0000-000000000000", mongoo.Document{"age": 1})
		assert.True(t, mongoo.IsNotFound(err))
	})

	t.Run("Serialize", func(t *testing.T) {
		stored, err := user.FindByIDOrFail(ctx, id)
		require.NoError(t, err)
		out := user.Serialize(stored)
		assert.Equal(t, id, out["id"])
		assert.NotContains(t, out, "_id")
		assert.Contains(t, out, "createdAtFormatted")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, user.DeleteByID(ctx, id))
		doc, err := user.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, doc)

		// Gone already: the plain variant swallows it, OrFail reports it.
		require.NoError(t, user.DeleteByID(ctx, id))
		err = user.DeleteByIDOrFail(ctx, id)
		assert.True(t, mongoo.IsNotFound(err))
	})
}

// TestPostLifecycleHooks exercises the synthesized write hooks end to
// end: slug derivation, update timestamp refresh and soft-delete
// filtering.
func TestPostLifecycleHooks(t *testing.T) {
	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	reg := mongoo.NewRegistry(mongoo.WithClock(func() time.Time { return base }))
	ctx := context.Background()
	post, err := reg.RegisterOrGet(ctx, "Post", []mongoo.Entry{
		mongoo.Token("title", "string!"),
		mongoo.Token("slug", "string?"),
		mongoo.Token("isDeleted", "boolean+"),
		mongoo.Token("views", "number+"),
	}, mongoo.Options{})
	require.NoError(t, err)

	created, err := post.Create(ctx, mongoo.Document{"title": "Hello World"})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", created["slug"])
	assert.Equal(t, false, created["isDeleted"], "defaults are applied")
	assert.Equal(t, float64(0), created["views"])
	assert.Equal(t, base, created["createdAt"])
	id := created["_id"].(string)

	// A caller-provided slug is kept.
	kept, err := post.Create(ctx, mongoo.Document{"title": "Other", "slug": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", kept["slug"])

	// The touch hook refreshes updatedAt on update.
	updated, err := post.UpdateByID(ctx, id, mongoo.Document{"views": 5})
	require.NoError(t, err)
	ts, ok := updated["updatedAt"].(time.Time)
	require.True(t, ok)
	assert.True(t, ts.After(base))
	assert.Equal(t, base, updated["createdAt"])

	// Soft-deleted documents drop out of aggregations.
	_, err = post.UpdateByID(ctx, id, mongoo.Document{"isDeleted": true})
	require.NoError(t, err)
	out, err := post.Aggregate(ctx, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Other", out[0]["title"])

	// Find is unfiltered; the stage applies to pipelines only.
	all, err := post.Find(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// TestAccountSecrets exercises the synthesized password hook and the
// sensitive-field serialization rule.
func TestAccountSecrets(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	account, err := reg.RegisterOrGet(ctx, "Account", []mongoo.Entry{
		mongoo.Token("username", "string!!"),
		mongoo.Token("password", "password"),
	}, mongoo.Options{})
	require.NoError(t, err)

	created, err := account.Create(ctx, mongoo.Document{
		"username": "ada",
		"password": "correct horse",
	})
	require.NoError(t, err)
	digest, ok := created["password"].(string)
	require.True(t, ok)
	assert.True(t, len(digest) > 20 && digest[:2] == "$2", "password is stored hashed")
	assert.True(t, synth.VerifyPassword(digest, "correct horse"))
	assert.False(t, synth.VerifyPassword(digest, "wrong"))

	// Unchanged on update: the digest is not re-hashed.
	id := created["_id"].(string)
	updated, err := account.UpdateByID(ctx, id, mongoo.Document{"username": "ada2"})
	require.NoError(t, err)
	assert.Equal(t, digest, updated["password"])

	out := account.Serialize(created)
	assert.NotContains(t, out, "password")
	assert.Contains(t, out, "username")
}

// TestScopedQueries exercises the synthesized recency and popularity
// scopes against stored documents.
func TestScopedQueries(t *testing.T) {
	now := time.Now().UTC()
	reg := mongoo.NewRegistry(mongoo.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	article, err := reg.RegisterOrGet(ctx, "Article", []mongoo.Entry{
		mongoo.Token("title", "string!"),
		mongoo.Token("views", "number+"),
	}, mongoo.Options{})
	require.NoError(t, err)

	_, err = article.Create(ctx, mongoo.Document{"title": "fresh", "views": 250})
	require.NoError(t, err)
	stale, err := article.Create(ctx, mongoo.Document{"title": "stale", "views": 3})
	require.NoError(t, err)
	_, err = article.UpdateByID(ctx, stale["_id"].(string), mongoo.Document{
		"createdAt": now.Add(-30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	recent, ok := article.ScopeFilter("recent")
	require.True(t, ok)
	docs, err := article.Find(ctx, recent)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fresh", docs[0]["title"])

	popular, ok := article.ScopeFilter("popular")
	require.True(t, ok)
	docs, err = article.Find(ctx, popular)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fresh", docs[0]["title"])

	_, ok = article.ScopeFilter("nonexistent")
	assert.False(t, ok)
}
