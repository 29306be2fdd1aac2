package typed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/entitydoc/pkg/adapters/memory"
	"github.com/aretw0/entitydoc/pkg/core"
	"github.com/aretw0/entitydoc/pkg/typed"
)

type Article struct {
	Title string   `json:"title"`
	Views int      `json:"views,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func seed(t *testing.T) (*memory.Repository, core.Ref) {
	t.Helper()
	repo := memory.New()
	e := core.Entity{
		Sys: core.Sys{ID: "a1", Type: core.TypeEntry, ContentType: "article", Version: 1},
		Fields: core.Fields{
			"title": {"en": "Hello", "de": "Hallo"},
			"views": {"en": 3},
		},
	}
	repo.Put(e)
	return repo, e.Sys.Ref()
}

func TestTypedRepository(t *testing.T) {
	repo, ref := seed(t)
	ctx := context.Background()
	articles := typed.NewRepository[Article](repo)

	en, err := articles.Get(ctx, ref, "en")
	require.NoError(t, err)
	assert.Equal(t, Article{Title: "Hello", Views: 3}, en.Data)

	en.Data.Title = "Hello again"
	en.Data.Tags = []string{"news"}
	require.NoError(t, en.Save(ctx))
	assert.Equal(t, 2, en.Sys.Version)

	stored, err := repo.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", stored.Fields["title"]["en"])
	assert.Equal(t, "Hallo", stored.Fields["title"]["de"], "other locales are kept")
	assert.Equal(t, []any{"news"}, stored.Fields["tags"]["en"])
}

func TestTypedRepository_StaleModel(t *testing.T) {
	repo, ref := seed(t)
	ctx := context.Background()
	articles := typed.NewRepository[Article](repo)

	first, err := articles.Get(ctx, ref, "en")
	require.NoError(t, err)
	second, err := articles.Get(ctx, ref, "en")
	require.NoError(t, err)

	first.Data.Title = "one"
	require.NoError(t, first.Save(ctx))

	second.Data.Title = "two"
	err = second.Save(ctx)
	assert.ErrorIs(t, core.Classify(err), core.ErrVersionMismatch)
}

func TestDetachedModel(t *testing.T) {
	m := &typed.EntityModel[Article]{Ref: core.Ref{Type: core.TypeEntry, ID: "x"}}
	assert.Error(t, m.Save(context.Background()))
}
