package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/entitydoc/pkg/paths"
)

func TestBus_OrderAndInterceptor(t *testing.T) {
	b := New()
	var calls []string

	b.Subscribe(func(paths.Path) { calls = append(calls, "first") })
	b.Subscribe(func(paths.Path) { calls = append(calls, "second") })
	b.Intercept(func(paths.Path) { calls = append(calls, "normalize") })

	b.Publish(paths.Field("title", "en"))
	assert.Equal(t, []string{"normalize", "first", "second"}, calls)
}

func TestBus_SubscribeAt(t *testing.T) {
	b := New()
	var got []paths.Path
	b.SubscribeAt(paths.Path{"fields", "title"}, func(p paths.Path) { got = append(got, p) })

	b.Publish(paths.Field("title", "en"))
	b.Publish(paths.Path{"fields"})
	b.Publish(paths.Field("body", "en"))
	b.Publish(paths.Tags())

	assert.Equal(t, []paths.Path{paths.Field("title", "en"), {"fields"}}, got)
}

func TestBus_SubscribePattern(t *testing.T) {
	b := New()
	var got []paths.Path
	_, err := b.SubscribePattern("fields/*/de", func(p paths.Path) { got = append(got, p) })
	require.NoError(t, err)

	b.Publish(paths.Field("title", "de"))
	b.Publish(paths.Field("title", "en"))
	assert.Equal(t, []paths.Path{paths.Field("title", "de")}, got)

	_, err = b.SubscribePattern("fields/[", func(paths.Path) {})
	assert.Error(t, err)
}

func TestBus_UnsubscribeAndClose(t *testing.T) {
	b := New()
	count := 0
	unsubscribe := b.Subscribe(func(paths.Path) { count++ })
	b.Publish(paths.Tags())
	unsubscribe()
	b.Publish(paths.Tags())
	assert.Equal(t, 1, count)

	b.Subscribe(func(paths.Path) { count++ })
	b.Close()
	b.Publish(paths.Tags())
	assert.Equal(t, 1, count)
	assert.Zero(t, b.Len())
}
