package conflict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/entitydoc/pkg/adapters/memory"
	"github.com/aretw0/entitydoc/pkg/bus"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/paths"
	"github.com/aretw0/entitydoc/pkg/store"
	"github.com/aretw0/entitydoc/pkg/telemetry"
)

func entity(version int, fields core.Fields, tags ...string) core.Entity {
	e := core.Entity{
		Sys:    core.Sys{ID: "e1", Type: core.TypeEntry, ContentType: "article", Version: version},
		Fields: fields,
	}
	for _, id := range tags {
		e.Metadata.Tags = append(e.Metadata.Tags, core.TagLink(id))
	}
	return e
}

func TestCompare(t *testing.T) {
	base := entity(1, core.Fields{"A": {"en": 1}, "T": {"en": "x"}})
	local := entity(1, core.Fields{"A": {"en": 2}, "T": {"en": "x"}})
	remote := entity(2, core.Fields{"A": {"en": 1}, "T": {"en": "x"}, "B": {"de": "y"}}, "t1")

	r := Compare(base, local, remote)
	assert.True(t, r.AutoResolvable)
	assert.Equal(t, []paths.Key{{Root: paths.RootFields, Field: "A", Locale: "en"}}, r.LocalChanged)
	assert.Len(t, r.RemoteChanged, 2)
	assert.Empty(t, r.SamePath)

	remote.Fields["A"] = map[string]any{"en": 3}
	r = Compare(base, local, remote)
	assert.False(t, r.AutoResolvable)
	assert.Equal(t, []string{"fields:A:en"}, keyStrings(r.SamePath))

	p := r.Payload()
	assert.Equal(t, "e1", p["entityId"])
	assert.Equal(t, 1, p["sameFieldLocaleConflictsCount"])
	assert.Equal(t, 3, p["remoteChangesCount"])
	assert.Equal(t, 2, p["remoteEntityVersion"])
	assert.Equal(t, false, p["isConflictAutoResolvable"])
}

func TestResolver(t *testing.T) {
	repo := memory.New()
	rec := &telemetry.Recorder{}
	res := &Resolver{Repo: repo, Telemetry: rec}
	ref := core.Ref{Type: core.TypeEntry, ID: "e1"}
	base := entity(1, core.Fields{"A": {"en": 1}})
	local := entity(1, core.Fields{"A": {"en": 2}})

	t.Run("abandoned when gone", func(t *testing.T) {
		out, err := res.Resolve(context.Background(), Input{Ref: ref, Base: base, Local: local})
		require.NoError(t, err)
		assert.Equal(t, Abandoned, out.Outcome)
		assert.Empty(t, rec.Events())
	})

	t.Run("fetch failure", func(t *testing.T) {
		broken := &Resolver{Repo: failingRepo{}}
		_, err := broken.Resolve(context.Background(), Input{Ref: ref, Base: base, Local: local})
		assert.ErrorIs(t, err, core.ErrCmaInternalServerError)
	})

	repo.Put(entity(2, core.Fields{"A": {"en": 1}, "B": {"en": "x"}}))

	t.Run("merged", func(t *testing.T) {
		out, err := res.Resolve(context.Background(), Input{Ref: ref, Base: base, Local: local})
		require.NoError(t, err)
		assert.Equal(t, Merged, out.Outcome)
		assert.Equal(t, 2, out.Remote.Sys.Version)
		require.Len(t, rec.Named(EventName), 1)
	})

	archived := entity(3, core.Fields{"A": {"en": 1}, "B": {"en": "x"}})
	archived.Sys.ArchivedVersion = core.IntPtr(2)
	repo.Put(archived)

	t.Run("archived is not a conflict", func(t *testing.T) {
		out, err := res.Resolve(context.Background(), Input{Ref: ref, Base: base, Local: local})
		require.NoError(t, err)
		assert.Equal(t, Archived, out.Outcome)
		assert.Equal(t, 3, out.Remote.Sys.Version)
		assert.Len(t, rec.Named(EventName), 1, "no telemetry for archiving")
	})
}

type failingRepo struct{}

func (failingRepo) Update(context.Context, core.Entity) (core.Entity, error) {
	return core.Entity{}, &core.RepositoryError{Code: core.CodeServerError}
}

func (failingRepo) Get(context.Context, core.Ref) (core.Entity, error) {
	return core.Entity{}, &core.RepositoryError{Code: core.CodeServerError}
}

func TestMerge(t *testing.T) {
	live := entity(1, core.Fields{"A": {"en": 2}, "C": {"en": "gone"}})
	s := store.New(live, nil, bus.New())

	remote := entity(2, core.Fields{"B": {"en": "x"}}, "t1")
	keys := []paths.Key{
		{Root: paths.RootFields, Field: "B", Locale: "en"},
		{Root: paths.RootFields, Field: "C", Locale: "en"},
		paths.TagsKey,
	}
	require.NoError(t, Merge(s, remote, keys))

	got := s.Snapshot()
	assert.Equal(t, 2, got.Fields["A"]["en"], "untouched local edit survives")
	assert.Equal(t, "x", got.Fields["B"]["en"])
	_, ok := got.Fields["C"]["en"]
	assert.False(t, ok)
	assert.Equal(t, []string{"t1"}, got.Metadata.TagIDs())
}
