package schemafile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/developer-rs5/easy-mongoo/compiler"
	"github.com/developer-rs5/easy-mongoo/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userDescriptor = `model: User
collection: people
options:
  timestamps: false
  serializeIdAs: uid
fields:
  name: string!
  email: email!!
  profile:
    bio: string
    links:
      list: url
  tags:
    list: string
  manager:
    ref: User
`

func TestParseBytes(t *testing.T) {
	models, err := ParseBytes([]byte(userDescriptor))
	require.NoError(t, err)
	require.Len(t, models, 1)

	m := models[0]
	assert.Equal(t, "User", m.Name)
	assert.Equal(t, "people", m.Options.Collection)
	assert.Equal(t, "uid", m.Options.SerializeIdentityAs)
	assert.False(t, m.Options.TimestampsEnabled())

	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.EntryName()
	}
	assert.Equal(t, []string{"name", "email", "profile", "tags", "manager"}, names,
		"fields keep their file order")

	tok, ok := m.Entries[0].(*schema.TokenEntry)
	require.True(t, ok)
	assert.Equal(t, "string!", tok.Token())

	obj, ok := m.Entries[2].(*schema.ObjectEntry)
	require.True(t, ok)
	require.Len(t, obj.Entries(), 2)
	nested, ok := obj.Entries()[1].(*schema.ListEntry)
	require.True(t, ok)
	assert.Equal(t, "links", nested.EntryName())

	list, ok := m.Entries[3].(*schema.ListEntry)
	require.True(t, ok)
	elem, ok := list.Elem().(*schema.TokenEntry)
	require.True(t, ok)
	assert.Equal(t, "string", elem.Token())

	ref, ok := m.Entries[4].(*schema.RefEntry)
	require.True(t, ok)
	assert.Equal(t, "User", ref.Model())
}

func TestParseMultiDocument(t *testing.T) {
	models, err := ParseBytes([]byte(`model: User
fields:
  name: string!
---
model: Post
fields:
  title: string!
`))
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "User", models[0].Name)
	assert.Equal(t, "Post", models[1].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "missing model name",
			in:   "fields:\n  name: string\n",
			want: "missing the model name",
		},
		{
			name: "no fields",
			in:   "model: User\n",
			want: "declares no fields",
		},
		{
			name: "unknown descriptor key",
			in:   "model: User\nhooks: []\nfields:\n  name: string\n",
			want: `unknown descriptor key "hooks"`,
		},
		{
			name: "unknown option",
			in:   "model: User\noptions:\n  autoIndex: true\nfields:\n  name: string\n",
			want: `unknown option "autoIndex"`,
		},
		{
			name: "non-boolean option",
			in:   "model: User\noptions:\n  timestamps: maybe\nfields:\n  name: string\n",
			want: "expected a boolean",
		},
		{
			name: "scalar fields",
			in:   "model: User\nfields: nope\n",
			want: "fields must be a mapping",
		},
		{
			name: "empty ref",
			in:   "model: User\nfields:\n  boss:\n    ref: \"\"\n",
			want: "ref needs a model name",
		},
		{
			name: "sequence field",
			in:   "model: User\nfields:\n  tags:\n    - a\n",
			want: "unsupported field declaration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.in))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
			var def *schema.DefinitionError
			assert.ErrorAs(t, err, &def)
		})
	}

	_, err := ParseBytes([]byte("model: [unclosed"))
	assert.ErrorContains(t, err, "parse yaml")
}

func TestCompileLoadedDescriptor(t *testing.T) {
	models, err := ParseBytes([]byte(userDescriptor))
	require.NoError(t, err)

	tree, err := compiler.Compile(models[0].Name, models[0].Entries, models[0].Options)
	require.NoError(t, err)
	assert.Equal(t, "people", tree.Collection)
	assert.Nil(t, tree.Timestamps)
	name := tree.Lookup("name")
	require.NotNil(t, name)
	assert.True(t, name.Desc.Required)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yaml", "model: Post\nfields:\n  title: string!\n")
	write("a.yml", "model: User\nfields:\n  name: string!\n")
	write("notes.txt", "not a descriptor")

	models, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "User", models[0].Name, "files load in name order")
	assert.Equal(t, "Post", models[1].Name)

	write("broken.yaml", "model: [unclosed")
	_, err = LoadDir(dir)
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.yaml"),
		[]byte("model: User\nfields:\n  name: string!\n"), 0o644))

	applied := make(chan []Model, 4)
	w, err := Watch(dir, func(models []Model) error {
		applied <- models
		return nil
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	// The initial load applies synchronously.
	select {
	case models := <-applied:
		require.Len(t, models, 1)
		assert.Equal(t, "User", models[0].Name)
	default:
		t.Fatal("initial load was not applied")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.yaml"),
		[]byte("model: Post\nfields:\n  title: string!\n"), 0o644))

	select {
	case models := <-applied:
		require.Len(t, models, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("descriptor change was not applied")
	}
}

func TestWatchRejectsBrokenDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"),
		[]byte("model: [unclosed"), 0o644))

	_, err := Watch(dir, func([]Model) error { return nil })
	assert.Error(t, err)
}
