package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type monkey struct{ name string }

func entry(fp int64) *Chunk[*monkey] {
	return NewChunk(&monkey{name: "m"}, fp, fp+32, fp+32+256)
}

func TestGeneration_GrowKeepsEntries(t *testing.T) {
	g := NewGeneration[*monkey](2)
	for i := int64(0); i < 20; i++ {
		require.NoError(t, g.Set(entry(464+i*288)))
	}
	require.Equal(t, 20, g.Len())
	for i := int64(0); i < 20; i++ {
		c := g.Get(464 + i*288)
		require.NotNil(t, c, "fp %d lost across grow", 464+i*288)
		assert.Equal(t, 464+i*288, c.FP)
	}
	assert.Nil(t, g.Get(7))
}

func TestGeneration_AcquireRelease(t *testing.T) {
	g := NewGeneration[*monkey](4)
	require.NoError(t, g.PromoteAndAcquire(entry(464)))
	assert.Equal(t, int64(1), g.InUse())
	assert.False(t, g.IsRemovable())

	c := g.AcquireIfPresent(464)
	require.NotNil(t, c)
	assert.Equal(t, int64(2), c.Acquisitions())
	assert.Nil(t, g.AcquireIfPresent(999))

	_, err := g.Release(464)
	require.NoError(t, err)
	_, err = g.Release(464)
	require.NoError(t, err)
	assert.True(t, g.IsRemovable())

	_, err = g.Release(464)
	require.ErrorIs(t, err, ErrNotAcquired)
	_, err = g.Release(999)
	require.ErrorIs(t, err, ErrNotAcquired)
	assert.True(t, g.Contains(464), "plain release does not evict")
}

func TestGeneration_PendingDeleteEvictsOnLastRelease(t *testing.T) {
	g := NewGeneration[*monkey](4)
	c := entry(464)
	require.NoError(t, g.PromoteAndAcquire(c))
	g.AcquireIfPresent(464)
	c.pendingDelete = true

	evicted, err := g.Release(464)
	require.NoError(t, err)
	assert.False(t, evicted)
	assert.True(t, g.Contains(464))

	evicted, err = g.Release(464)
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.False(t, g.Contains(464))
	assert.Equal(t, int64(0), g.InUse())
	assert.NotNil(t, c.Monkey, "pending delete keeps the monkey until eviction")
}

func TestGeneration_SetCarriesAcquisitions(t *testing.T) {
	g := NewGeneration[*monkey](4)
	c := entry(464)
	c.acquisitions = 3
	require.NoError(t, g.Set(c))
	assert.Equal(t, int64(3), g.InUse())

	replacement := entry(464)
	require.NoError(t, g.Set(replacement))
	assert.Equal(t, int64(0), g.InUse(), "replacing an entry drops its count")

	require.NoError(t, g.Set(c))
	removed := g.Remove(464)
	assert.Same(t, c, removed)
	assert.Equal(t, int64(0), g.InUse())
	assert.Nil(t, g.Remove(464))
}
