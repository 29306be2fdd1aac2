package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/entitydoc/pkg/core"
)

func TestOf(t *testing.T) {
	base := core.Sys{ID: "e1", Version: 5}
	assert.Equal(t, Draft, Of(base))
	assert.True(t, IsDirty(base))

	published := base
	published.PublishedVersion = core.IntPtr(4)
	assert.Equal(t, Published, Of(published))
	assert.False(t, IsDirty(published))

	changed := base
	changed.PublishedVersion = core.IntPtr(2)
	assert.Equal(t, Changed, Of(changed))
	assert.True(t, IsDirty(changed))

	archived := base
	archived.ArchivedVersion = core.IntPtr(4)
	assert.Equal(t, Archived, Of(archived))

	assert.Equal(t, Inaccessible, Of(core.Sys{}))
}

func TestApply(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	sys := core.Sys{ID: "e1", Version: 3}

	published, err := Apply(sys, core.ActionPublish, now, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, published.Version)
	assert.Equal(t, 3, *published.PublishedVersion)
	assert.False(t, IsDirty(published))
	assert.Equal(t, "u1", published.UpdatedBy)

	_, err = Apply(published, core.ActionArchive, now, "u1")
	assert.ErrorIs(t, core.Classify(err), core.ErrCmaInternalServerError)

	archived, err := Apply(sys, core.ActionArchive, now, "u1")
	require.NoError(t, err)
	assert.True(t, IsArchived(archived))

	_, err = Apply(archived, core.ActionPublish, now, "u1")
	assert.ErrorIs(t, core.Classify(err), core.ErrArchived)

	restored, err := Apply(archived, core.ActionUnarchive, now, "u1")
	require.NoError(t, err)
	assert.Equal(t, Draft, Of(restored))

	deleted, err := Apply(restored, core.ActionDelete, now, "u1")
	require.NoError(t, err)
	assert.True(t, IsDeleted(deleted))
	assert.Equal(t, restored.Version, deleted.Version)
}
