package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/entitydoc/pkg/bus"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/paths"
)

var schema = core.StaticSchema{
	"article": {
		ID: "article",
		Fields: []core.FieldDef{
			{ID: "title", Type: core.FieldSymbol, Localized: true},
			{ID: "list", Type: core.FieldArray, Localized: true},
			{ID: "count", Type: core.FieldInteger},
		},
	},
}

func newStore(t *testing.T) (*Store, *[]paths.Path) {
	t.Helper()
	var events []paths.Path
	b := bus.New()
	b.Subscribe(func(p paths.Path) { events = append(events, p) })

	entity := core.Entity{
		Sys: core.Sys{ID: "e1", Type: core.TypeEntry, ContentType: "article", Version: 3},
		Fields: core.Fields{
			"title": {"en": "Hello"},
			"list":  {"en": []any{"a"}},
			"count": {"en": 1},
		},
		Metadata: core.Metadata{Tags: []core.Link{core.TagLink("t1")}},
	}
	return New(entity, schema, b), &events
}

func TestStore_GetValueAt(t *testing.T) {
	s, _ := newStore(t)

	assert.Equal(t, "Hello", s.GetValueAt(paths.Field("title", "en")))
	assert.Equal(t, 3, s.GetValueAt(paths.Path{"sys", "version"}))
	assert.Equal(t, "a", s.GetValueAt(paths.Field("list", "en").Index(0)))
	assert.Equal(t, core.TagLink("t1"), s.GetValueAt(paths.Tags().Index(0)))
	assert.Nil(t, s.GetValueAt(paths.Field("missing", "en")))
	assert.Nil(t, s.GetValueAt(paths.Path{"nope"}))

	whole, ok := s.GetValueAt(nil).(core.Entity)
	require.True(t, ok)
	assert.Equal(t, "e1", whole.Sys.ID)
}

func TestStore_SetValueAt_Text(t *testing.T) {
	s, events := newStore(t)

	require.NoError(t, s.SetValueAt(paths.Field("title", "de"), "Hallo"))
	assert.Equal(t, "Hallo", s.GetValueAt(paths.Field("title", "de")))

	err := s.SetValueAt(paths.Field("title", "en"), 42)
	assert.ErrorIs(t, err, core.ErrInvalidValue)
	assert.Equal(t, "Hello", s.GetValueAt(paths.Field("title", "en")))

	require.NoError(t, s.SetValueAt(paths.Field("title", "en"), ""))
	assert.Nil(t, s.GetValueAt(paths.Field("title", "en")))
	assert.NotContains(t, s.Snapshot().Fields["title"], "en")

	assert.Equal(t, []paths.Path{paths.Field("title", "de"), paths.Field("title", "en")}, *events)
}

func TestStore_SetValueAt_Literal(t *testing.T) {
	s, _ := newStore(t)

	require.NoError(t, s.SetValueAt(paths.Field("count", "en"), 7))
	assert.Equal(t, 7, s.GetValueAt(paths.Field("count", "en")))

	require.NoError(t, s.SetValueAt(paths.Field("count", "en"), ""), "only text fields unset on empty string")
	assert.Equal(t, "", s.GetValueAt(paths.Field("count", "en")))

	assert.ErrorIs(t, s.SetValueAt(paths.Path{"sys", "version"}, 9), core.ErrIllegalOperation)
}

func TestStore_PushInsert(t *testing.T) {
	s, events := newStore(t)
	list := paths.Field("list", "en")

	require.NoError(t, s.PushValueAt(list, "c"))
	require.NoError(t, s.InsertValueAt(list, 1, "b"))
	assert.Equal(t, []any{"a", "b", "c"}, s.GetValueAt(list))

	require.NoError(t, s.PushValueAt(paths.Field("list", "de"), "x"))
	assert.Equal(t, []any{"x"}, s.GetValueAt(paths.Field("list", "de")))

	before := len(*events)
	require.NoError(t, s.PushValueAt(paths.Field("title", "en"), "x"))
	assert.Equal(t, "Hello", s.GetValueAt(paths.Field("title", "en")))
	assert.Len(t, *events, before, "pushing onto a non-array is a silent no-op")

	require.NoError(t, s.InsertValueAt(paths.Tags(), 0, core.TagLink("t0")))
	assert.Equal(t, []string{"t0", "t1"}, s.Snapshot().Metadata.TagIDs())
}

func TestStore_RemoveValueAt(t *testing.T) {
	s, _ := newStore(t)

	for _, p := range []paths.Path{paths.Tags(), {"metadata"}, {}} {
		assert.ErrorIs(t, s.RemoveValueAt(p), core.ErrIllegalOperation, p.String())
	}

	require.NoError(t, s.RemoveValueAt(paths.Tags().Index(0)))
	assert.Empty(t, s.Snapshot().Metadata.Tags)

	require.NoError(t, s.RemoveValueAt(paths.Path{"fields", "count"}))
	assert.Nil(t, s.GetValueAt(paths.Path{"fields", "count"}))
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	s, _ := newStore(t)
	snap := s.Snapshot()
	snap.Fields["title"]["en"] = "changed"
	assert.Equal(t, "Hello", s.GetValueAt(paths.Field("title", "en")))

	s.ReplaceSys(core.Sys{ID: "e1", Type: core.TypeEntry, ContentType: "article", Version: 4})
	assert.Equal(t, 4, s.Sys().Version)
}
