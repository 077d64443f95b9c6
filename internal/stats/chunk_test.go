package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkManagerCountClose(t *testing.T) {
	m := NewChunkManager(3, 0, false)

	_, ok := m.Add(1, 0, 0)
	assert.False(t, ok)
	_, ok = m.Add(2, 1000, 1000)
	assert.False(t, ok)

	closed, ok := m.Add(3, 1000, 2000)
	require.True(t, ok, "third observation closes a size-3 chunk")
	assert.Equal(t, uint64(3), closed.Count())
	assert.InDelta(t, 2.0, closed.Mean(), 1e-9)
	assert.Equal(t, uint64(0), m.Open().Count(), "closing empties the open chunk")
}

func TestChunkManagerDurationCloseExcludesTrigger(t *testing.T) {
	m := NewChunkManager(0, 5000, false)

	_, ok := m.Add(10, 0, 0)
	assert.False(t, ok)
	_, ok = m.Add(20, 2000, 2000)
	assert.False(t, ok)

	// Crossing the duration bound closes the chunk first; the triggering
	// observation starts the next chunk.
	closed, ok := m.Add(30, 4000, 6000)
	require.True(t, ok)
	assert.Equal(t, uint64(2), closed.Count())
	assert.InDelta(t, 15.0, closed.Mean(), 1e-9)

	open := m.Open()
	assert.Equal(t, uint64(1), open.Count())
	assert.Equal(t, 30.0, open.Mean())
}

func TestChunkManagerDurationNeverClosesEmpty(t *testing.T) {
	m := NewChunkManager(0, 1000, false)

	// First observation exceeds the bound on its own but there is nothing
	// to close yet.
	_, ok := m.Add(5, 5000, 5000)
	assert.False(t, ok)

	closed, ok := m.Add(6, 2000, 7000)
	require.True(t, ok)
	assert.Equal(t, uint64(1), closed.Count())
}

func TestChunkManagerReset(t *testing.T) {
	m := NewChunkManager(3, 0, false)
	m.Add(1, 0, 0)
	m.Add(2, 1000, 1000)
	m.Reset()

	assert.Equal(t, uint64(0), m.Open().Count())
	_, ok := m.Add(7, 0, 2000)
	assert.False(t, ok, "reset restarts the count toward the chunk size")
}

func TestChunkManagerSizeOnePassthrough(t *testing.T) {
	m := NewChunkManager(1, 0, false)
	closed, ok := m.Add(42, 0, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(1), closed.Count())
	assert.Equal(t, 42.0, closed.Mean())
}
