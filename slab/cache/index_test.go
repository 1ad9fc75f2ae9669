package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwissIndex_SlotReuse(t *testing.T) {
	idx := newSwissIndex(2)

	a, err := idx.Add(fpKey(100))
	require.NoError(t, err)
	b, err := idx.Add(fpKey(200))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, idx.IsFull())

	_, err = idx.Add(fpKey(300))
	require.ErrorIs(t, err, errIndexFull)

	again, err := idx.Add(fpKey(100))
	require.NoError(t, err)
	assert.Equal(t, a, again, "existing key keeps its slot")

	assert.Equal(t, a, idx.Remove(fpKey(100)))
	assert.Equal(t, -1, idx.Remove(fpKey(100)))
	assert.Equal(t, -1, idx.Get(fpKey(100)))

	c, err := idx.Add(fpKey(300))
	require.NoError(t, err)
	assert.Equal(t, a, c, "freed slot is reused")
}

func TestSwissIndex_CopyTo(t *testing.T) {
	src := newSwissIndex(4)
	for fp := int64(1); fp <= 4; fp++ {
		_, err := src.Add(fpKey(fp * 1000))
		require.NoError(t, err)
	}
	dst := newSwissIndex(src.NextGrowSize())
	assert.Equal(t, 8, dst.Cap())

	moves := map[int]int{}
	require.NoError(t, src.CopyTo(dst, func(o, n int) { moves[o] = n }))
	assert.Len(t, moves, 4)
	assert.Equal(t, 4, dst.Len())
	for fp := int64(1); fp <= 4; fp++ {
		assert.Equal(t, moves[src.Get(fpKey(fp*1000))], dst.Get(fpKey(fp*1000)))
	}
}

func TestSwissIndex_CopyToFull(t *testing.T) {
	src := newSwissIndex(3)
	for fp := int64(1); fp <= 3; fp++ {
		_, err := src.Add(fpKey(fp))
		require.NoError(t, err)
	}
	err := src.CopyTo(newSwissIndex(2), func(int, int) {})
	require.ErrorIs(t, err, errIndexFull)
}
