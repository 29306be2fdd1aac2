package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffects(t *testing.T) {
	title := Field("title", "en-US")

	assert.True(t, Affects(title, Path{"fields"}))
	assert.True(t, Affects(Path{"fields", "title"}, title))
	assert.True(t, Affects(title, title))
	assert.True(t, Affects(title.Append("nested"), title))
	assert.False(t, Affects(title, Field("title", "de")))
	assert.False(t, Affects(Tags(), Path{"fields"}))
}

func TestKey(t *testing.T) {
	k, ok := Field("title", "en-US").Append("deep").Key()
	require.True(t, ok)
	assert.Equal(t, Key{Root: RootFields, Field: "title", Locale: "en-US"}, k)
	assert.Equal(t, "fields:title:en-US", k.String())

	k, ok = Tags().Index(2).Key()
	require.True(t, ok)
	assert.Equal(t, TagsKey, k)
	assert.Equal(t, "metadata:tags", k.String())

	_, ok = Path{"fields", "title"}.Key()
	assert.False(t, ok)

	assert.True(t, Key{Root: RootFields, Field: "a", Locale: "z"}.Less(TagsKey))
	assert.True(t, Key{Root: RootFields, Field: "a", Locale: "z"}.Less(Key{Root: RootFields, Field: "b", Locale: "a"}))
}

func TestNew(t *testing.T) {
	assert.Equal(t, Path{"metadata", "tags", "0"}, New("metadata", "tags", 0))
	assert.Equal(t, "fields/title/en", Field("title", "en").String())
}

func TestTree(t *testing.T) {
	var root any
	root, err := Set(root, Path{"a", "b"}, 1)
	require.NoError(t, err)

	v, ok := Get(root, Path{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = Get(root, Path{"a", "missing"})
	assert.False(t, ok)

	list := []any{"x"}
	out, err := Set(list, Path{"2"}, "z")
	require.NoError(t, err)
	assert.Equal(t, []any{"x", nil, "z"}, out)

	_, err = Set("scalar", Path{"k"}, 1)
	assert.Error(t, err)

	assert.True(t, Unset(root, Path{"a", "b"}))
	assert.False(t, Unset(root, Path{"a", "b"}))
	assert.Equal(t, map[string]any{"a": map[string]any{}}, root)
}
