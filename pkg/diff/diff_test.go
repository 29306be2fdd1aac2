package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/paths"
)

func TestFields(t *testing.T) {
	a := core.Fields{
		"title": {"en": "A", "de": "A"},
		"body":  {"en": map[string]any{"nodes": []any{"x"}}},
	}
	b := core.Fields{
		"title": {"en": "B", "de": "A"},
		"body":  {"en": map[string]any{"nodes": []any{"x"}}},
		"slug":  {"en": "a"},
	}

	got := Fields(a, b)
	assert.Equal(t, []paths.Path{
		paths.Field("slug", "en"),
		paths.Field("title", "en"),
	}, got)

	assert.Empty(t, Fields(a, a))
	assert.Empty(t, Fields(nil, core.Fields{}))
	assert.Equal(t, []paths.Path{paths.Field("title", "en")}, Fields(nil, core.Fields{"title": {"en": "x"}}))
}

func TestTags(t *testing.T) {
	ab := core.Metadata{Tags: []core.Link{core.TagLink("a"), core.TagLink("b")}}
	ba := core.Metadata{Tags: []core.Link{core.TagLink("b"), core.TagLink("a")}}
	a := core.Metadata{Tags: []core.Link{core.TagLink("a")}}

	assert.Empty(t, Tags(ab, ba), "order is ignored")
	assert.Equal(t, []paths.Path{paths.Tags()}, Tags(ab, a))
	assert.Empty(t, Tags(core.Metadata{}, core.Metadata{Tags: []core.Link{}}))
	assert.Equal(t, []paths.Path{paths.Tags()}, Tags(core.Metadata{}, a))
}

func TestEqualAndKeys(t *testing.T) {
	base := core.Entity{Fields: core.Fields{"title": {"en": "A"}}}
	changed := base.Clone()
	changed.Fields["title"]["en"] = "B"
	changed.Metadata.Tags = []core.Link{core.TagLink("t")}

	assert.True(t, Equal(base, base.Clone()))
	assert.False(t, Equal(base, changed))

	keys := Keys(base, changed)
	assert.ElementsMatch(t, []paths.Key{
		{Root: paths.RootFields, Field: "title", Locale: "en"},
		paths.TagsKey,
	}, keys.ToSlice())
}
