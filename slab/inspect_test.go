package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/internal/format"
)

func TestWalk(t *testing.T) {
	a := newTestAllocator(t)
	fpA := mustAllocate(t, a, 256)
	fpB := mustAllocate(t, a, 1024)
	fpC := mustAllocate(t, a, 300)
	require.NoError(t, a.Remove(fpB))

	var got []ChunkInfo
	require.NoError(t, a.Walk(func(ci ChunkInfo) error {
		got = append(got, ci)
		return nil
	}))
	require.Len(t, got, 3)
	assert.Equal(t, []int64{fpA, fpB, fpC}, []int64{got[0].FP, got[1].FP, got[2].FP})
	assert.Equal(t, []int{8, 10, 9}, []int{got[0].Power, got[1].Power, got[2].Power})
	assert.True(t, got[0].Live)
	assert.False(t, got[1].Live)
	assert.Equal(t, format.NilFP, got[1].Next)
	assert.Equal(t, a.SizeInBytes(), got[2].PayloadEnd)
}

func TestFreeList_InvalidPower(t *testing.T) {
	a := newTestAllocator(t)
	_, err := a.FreeList(3)
	require.Error(t, err)
}

func TestCheck_DetectsCorruption(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		a := newTestAllocator(t)
		fp := mustAllocate(t, a, 256)
		require.NoError(t, writeWord(a.buf, fp, 0x1234))
		require.ErrorIs(t, a.Check(), ErrCorrupt)
	})

	t.Run("live chunk on free list", func(t *testing.T) {
		a := newTestAllocator(t)
		fp := mustAllocate(t, a, 256)
		require.NoError(t, writeWord(a.buf, int64(format.FreeSeek(8)), fp))
		require.ErrorIs(t, a.Check(), ErrCorrupt)

		_, err := Allocate(a, int64(10), recFiler)
		require.ErrorIs(t, err, ErrCorrupt, "allocate refuses a corrupt free list")
	})

	t.Run("cycle", func(t *testing.T) {
		a := newTestAllocator(t)
		fpA := mustAllocate(t, a, 256)
		fpB := mustAllocate(t, a, 256)
		require.NoError(t, a.Remove(fpA))
		require.NoError(t, a.Remove(fpB))
		// B -> A -> B
		require.NoError(t, writeWord(a.buf, fpA+format.ChunkNextOffset, fpB))
		_, err := a.FreeList(8)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("orphan", func(t *testing.T) {
		a := newTestAllocator(t)
		fp := mustAllocate(t, a, 256)
		require.NoError(t, a.Remove(fp))
		require.NoError(t, writeWord(a.buf, int64(format.FreeSeek(8)), format.NilFP))
		require.ErrorIs(t, a.Check(), ErrCorrupt)
	})
}
