package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)

	var fired atomic.Int32
	c.AfterFunc(time.Second, func() { fired.Add(1) })
	stopped := c.AfterFunc(time.Second, func() { fired.Add(10) })
	assert.Equal(t, 2, c.Pending())

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, c.Pending())

	c.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, c.Pending())
	assert.Equal(t, start.Add(time.Second), c.Now())
}
