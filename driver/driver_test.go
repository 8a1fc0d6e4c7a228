package driver

import (
	"context"
	"testing"

	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recording(name string, log *[]string) hook.Hook {
	return func(next hook.Mutator) hook.Mutator {
		return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
			*log = append(*log, name+":pre")
			doc, err := next.Mutate(ctx, m)
			*log = append(*log, name+":post")
			return doc, err
		})
	}
}

func TestChainOrder(t *testing.T) {
	var log []string
	spec := &CollectionSpec{
		Features: &synth.FeatureSet{
			Hooks: []hook.Spec{
				{Name: "a", Op: hook.OpCreate, Hook: recording("a", &log)},
				{Name: "skip", Op: hook.OpUpdate, Hook: recording("skip", &log)},
				{Name: "b", Op: hook.OpCreate | hook.OpUpdate, Hook: recording("b", &log)},
				{Name: "stage", Op: hook.OpAggregate, Stage: schema.Document{"$match": schema.Document{}}},
			},
		},
	}
	terminal := hook.MutateFunc(func(_ context.Context, m hook.Mutation) (schema.Document, error) {
		log = append(log, "terminal")
		return m.Document(), nil
	})
	mut := hook.NewMutation("User", hook.OpCreate, schema.Document{"name": "Ada"})
	_, err := Chain(spec, hook.OpCreate, terminal).Mutate(context.Background(), mut)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:pre", "b:pre", "terminal", "b:post", "a:post"}, log)
}

func TestChainNilSpec(t *testing.T) {
	terminal := hook.MutateFunc(func(_ context.Context, m hook.Mutation) (schema.Document, error) {
		return m.Document(), nil
	})
	mut := hook.NewMutation("User", hook.OpCreate, schema.Document{"x": 1})
	doc, err := Chain(nil, hook.OpCreate, terminal).Mutate(context.Background(), mut)
	require.NoError(t, err)
	assert.Equal(t, 1, doc["x"])
}

func TestStages(t *testing.T) {
	assert.Nil(t, Stages(nil))
	assert.Nil(t, Stages(&CollectionSpec{}))

	stage := schema.Document{"$match": schema.Document{"isDeleted": schema.Document{"$ne": true}}}
	spec := &CollectionSpec{Features: &synth.FeatureSet{
		Hooks: []hook.Spec{{Name: "softDelete", Op: hook.OpAggregate, Stage: stage}},
	}}
	got := Stages(spec)
	require.Len(t, got, 1)
	assert.Equal(t, stage, got[0])
}

func TestErrorStrings(t *testing.T) {
	dup := &DuplicateKeyError{Field: "email", Value: "a@example.com"}
	assert.Equal(t, `duplicate key on field "email" (value a@example.com)`, dup.Error())

	val := &ValidationError{Errors: []FieldError{
		{Field: "name", Message: "name is required"},
		{Field: "age", Message: "age must be at least 0"},
	}}
	assert.Equal(t, "validation failed: name is required, age must be at least 0", val.Error())
	assert.Equal(t, []string{"name is required", "age must be at least 0"}, val.Messages())

	cast := &CastError{Value: "abc"}
	assert.Equal(t, `Cast to ObjectId failed for value "abc"`, cast.Error())

	nf := &NotFoundError{Model: "User", ID: "42"}
	assert.Equal(t, `User: no document with id "42"`, nf.Error())
}
