package mongoo_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/index"
	"github.com/developer-rs5/easy-mongoo/synth"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func userDef() []mongoo.Entry {
	return []mongoo.Entry{
		mongoo.Token("name", "string!"),
		mongoo.Token("email", "email!!"),
		mongoo.Token("age", "number?"),
	}
}

func TestRegisterOrGet(t *testing.T) {
	var ticks int
	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	reg := mongoo.NewRegistry(mongoo.WithClock(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Millisecond)
	}))
	user, err := reg.RegisterOrGet(context.Background(), "User", userDef(), mongoo.Options{})
	require.NoError(t, err)
	assert.Equal(t, "User", user.Name())
	assert.Equal(t, "users", user.Tree().Collection)
	assert.NotNil(t, user.Features())

	snap := reg.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Registered)
	assert.Equal(t, int64(0), snap.Hits)
	assert.Equal(t, time.Millisecond, snap.CompileDuration)
	assert.Equal(t, time.Millisecond, snap.AvgCompileDuration())
}

func TestRegisterLogsTokenWarnings(t *testing.T) {
	var buf bytes.Buffer
	reg := mongoo.NewRegistry(mongoo.WithLogger(zerolog.New(&buf)))
	_, err := reg.RegisterOrGet(context.Background(), "Note", []mongoo.Entry{
		mongoo.Token("body", "strang!"),
	}, mongoo.Options{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "unknown token, falling back to plain string")
	assert.Contains(t, buf.String(), `"token":"strang!"`)
}

func TestRegisterOrGetFirstWins(t *testing.T) {
	var buf bytes.Buffer
	reg := mongoo.NewRegistry(mongoo.WithLogger(zerolog.New(&buf)))
	ctx := context.Background()

	first, err := reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	// A different definition returns the first entry untouched.
	other := append(userDef(), mongoo.Token("nickname", "string?"))
	second, err := reg.RegisterOrGet(ctx, "User", other, mongoo.Options{})
	require.NoError(t, err)
	assert.Same(t, first.Tree(), second.Tree())
	assert.False(t, second.Tree().HasField("nickname"))
	assert.Contains(t, buf.String(), "keeping the first registration")
	assert.Equal(t, int64(1), reg.Stats().Snapshot().Hits)

	// The same definition is a plain hit, without the warning.
	buf.Reset()
	_, err = reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "keeping the first registration")
	assert.Equal(t, int64(2), reg.Stats().Snapshot().Hits)
	assert.Equal(t, int64(1), reg.Stats().Snapshot().Registered)
}

func TestRegisterOrGetErrors(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()

	_, err := reg.RegisterOrGet(ctx, "", userDef(), mongoo.Options{})
	var def *schema.DefinitionError
	require.ErrorAs(t, err, &def)

	// Compile failures leave nothing registered.
	_, err = reg.RegisterOrGet(ctx, "Broken", []mongoo.Entry{
		mongoo.Token("name", "string"),
		mongoo.Token("name", "string"),
	}, mongoo.Options{})
	require.ErrorAs(t, err, &def)
	_, err = reg.Get("Broken")
	assert.True(t, mongoo.IsModelNotFound(err))
}

func TestRegisterOrGetConcurrent(t *testing.T) {
	reg := mongoo.NewRegistry()
	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			_, err := reg.RegisterOrGet(context.Background(), "User", userDef(), mongoo.Options{})
			return err
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int64(1), reg.Stats().Snapshot().Registered)
	assert.Equal(t, []string{"User"}, reg.Models())
}

func TestGet(t *testing.T) {
	reg := mongoo.NewRegistry()
	_, err := reg.RegisterOrGet(context.Background(), "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	user, err := reg.Get("User")
	require.NoError(t, err)
	assert.Equal(t, "User", user.Name())

	_, err = reg.Get("Ghost")
	assert.True(t, mongoo.IsModelNotFound(err))
}

func TestExtendBeforeRegister(t *testing.T) {
	reg := mongoo.NewRegistry()
	err := reg.Extend("Y", mongoo.WithVirtual("initials", func(doc mongoo.Document) any {
		return nil
	}, nil))
	assert.True(t, mongoo.IsModelNotFound(err))
}

func TestExtendVirtual(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	user, err := reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	err = reg.Extend("User", mongoo.WithVirtual("domain", func(doc mongoo.Document) any {
		email, _ := doc["email"].(string)
		if _, domain, ok := strings.Cut(email, "@"); ok {
			return domain
		}
		return ""
	}, nil))
	require.NoError(t, err)

	spec := user.Features().Virtual("domain")
	require.NotNil(t, spec)
	out := user.Serialize(mongoo.Document{"email": "ada@example.com"})
	assert.Equal(t, "example.com", out["domain"])

	err = reg.Extend("User", mongoo.WithVirtual("", nil, nil))
	assert.ErrorContains(t, err, "virtual name cannot be empty")
	assert.Equal(t, int64(1), reg.Stats().Snapshot().Extensions)
}

func TestExtendVirtualReplacesSynthesized(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	person, err := reg.RegisterOrGet(ctx, "Person", []mongoo.Entry{
		mongoo.Token("firstName", "string"),
		mongoo.Token("lastName", "string"),
	}, mongoo.Options{})
	require.NoError(t, err)

	before := len(person.Features().Virtuals)
	err = reg.Extend("Person", mongoo.WithVirtual("fullName", func(doc mongoo.Document) any {
		return "override"
	}, nil))
	require.NoError(t, err)
	assert.Len(t, person.Features().Virtuals, before)
	assert.Equal(t, "override", person.Features().Virtual("fullName").Resolve(mongoo.Document{}))
}

func TestExtendHook(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	user, err := reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	var fired int
	err = reg.Extend("User", mongoo.WithHook("save", hook.Pre, func(next hook.Mutator) hook.Mutator {
		return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
			fired++
			return next.Mutate(ctx, m)
		})
	}))
	require.NoError(t, err)

	_, err = user.Create(ctx, mongoo.Document{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	err = reg.Extend("User", mongoo.WithHook("teleport", hook.Pre, nil))
	assert.ErrorContains(t, err, `unknown hook operation "teleport"`)
}

func TestExtendCallables(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	user, err := reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	err = reg.Extend("User",
		mongoo.WithMethod("greeting", func(_ context.Context, _ *mongoo.Model, doc mongoo.Document, _ ...any) (any, error) {
			return "hello " + doc["name"].(string), nil
		}),
		mongoo.WithStatic("count", func(ctx context.Context, m *mongoo.Model, _ ...any) (any, error) {
			docs, err := m.Find(ctx, nil)
			return len(docs), err
		}),
		mongoo.WithQueryHelper("adults", func(filter mongoo.Document, _ ...any) mongoo.Document {
			if filter == nil {
				filter = mongoo.Document{}
			}
			filter["age"] = mongoo.Document{"$gte": 18}
			return filter
		}),
	)
	require.NoError(t, err)

	got, err := user.CallMethod(ctx, "greeting", mongoo.Document{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello Ada", got)

	_, err = user.Create(ctx, mongoo.Document{"name": "Ada", "email": "a@example.com", "age": 36})
	require.NoError(t, err)
	_, err = user.Create(ctx, mongoo.Document{"name": "Lin", "email": "l@example.com", "age": 17})
	require.NoError(t, err)

	count, err := user.CallStatic(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	filter, err := user.ApplyHelper("adults", nil)
	require.NoError(t, err)
	adults, err := user.Find(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, adults, 1)

	_, err = user.CallMethod(ctx, "missing", nil)
	assert.ErrorContains(t, err, `no method "missing"`)
	_, err = user.CallStatic(ctx, "missing")
	assert.ErrorContains(t, err, `no static "missing"`)
	_, err = user.ApplyHelper("missing", nil)
	assert.ErrorContains(t, err, `no query helper "missing"`)
}

func TestExtendIndex(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	user, err := reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	err = reg.Extend("User", mongoo.WithIndex(index.Fields("age")))
	require.NoError(t, err)
	assert.NotNil(t, user.Features().Index("age_1"))

	err = reg.Extend("User", mongoo.WithIndex(index.Fields()))
	assert.ErrorContains(t, err, "at least one field")

	require.NoError(t, reg.SyncIndexes(ctx, "User"))
}

func TestExtendPlugin(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	user, err := reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	err = reg.Extend("User", mongoo.WithPlugin(func(tree *schema.Tree, features *synth.FeatureSet) error {
		features.Scopes = append(features.Scopes, synth.Scope{
			Name: "named",
			Filter: func(now time.Time) schema.Document {
				return schema.Document{"name": schema.Document{"$ne": ""}}
			},
		})
		return nil
	}))
	require.NoError(t, err)
	filter, ok := user.ScopeFilter("named")
	require.True(t, ok)
	assert.Equal(t, mongoo.Document{"name": schema.Document{"$ne": ""}}, filter)

	err = reg.Extend("User", mongoo.WithPlugin(nil))
	assert.ErrorContains(t, err, "plugin cannot be nil")
}

func TestReset(t *testing.T) {
	reg := mongoo.NewRegistry()
	_, err := reg.RegisterOrGet(context.Background(), "User", userDef(), mongoo.Options{})
	require.NoError(t, err)

	reg.Reset()
	_, err = reg.Get("User")
	assert.True(t, mongoo.IsModelNotFound(err))
	assert.Empty(t, reg.Models())
}

func TestModels(t *testing.T) {
	reg := mongoo.NewRegistry()
	ctx := context.Background()
	for _, name := range []string{"Post", "User", "Comment"} {
		_, err := reg.RegisterOrGet(ctx, name, []mongoo.Entry{mongoo.Token("title", "string")}, mongoo.Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Comment", "Post", "User"}, reg.Models())
}

func TestSyncIndexesUnknownModel(t *testing.T) {
	reg := mongoo.NewRegistry()
	err := reg.SyncIndexes(context.Background(), "Ghost")
	assert.True(t, mongoo.IsModelNotFound(err))
}

func TestFingerprint(t *testing.T) {
	ctx := context.Background()
	reg := mongoo.NewRegistry()
	_, err := reg.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)
	_, err = reg.RegisterOrGet(ctx, "Post", []mongoo.Entry{mongoo.Token("title", "string!")}, mongoo.Options{})
	require.NoError(t, err)

	user, err := reg.Fingerprint("User")
	require.NoError(t, err)
	assert.Len(t, user, 64)

	// A second registry compiling the same declaration lands on the
	// same digest, so fingerprints are comparable across processes.
	other := mongoo.NewRegistry()
	_, err = other.RegisterOrGet(ctx, "User", userDef(), mongoo.Options{})
	require.NoError(t, err)
	again, err := other.Fingerprint("User")
	require.NoError(t, err)
	assert.Equal(t, user, again)

	post, err := reg.Fingerprint("Post")
	require.NoError(t, err)
	assert.NotEqual(t, user, post)

	_, err = reg.Fingerprint("Ghost")
	assert.True(t, mongoo.IsModelNotFound(err))
}
