//go:build unix

package slab

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/slab/backing"
	"github.com/joshuapare/slabkit/slab/view"
)

func TestFile_GrowthPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.slab")
	opts := testOptions()

	a, err := Create[rec](path, opts)
	require.NoError(t, err)

	small := mustAllocate(t, a, 257)
	big := mustAllocate(t, a, 100<<10) // spans segments
	require.NoError(t, writeChunk(a, small, 0, []byte("persist me")))
	tail := []byte("end of the big chunk")
	require.NoError(t, writeChunk(a, big, 128<<10-int64(len(tail)), tail))
	freed := mustAllocate(t, a, 600)
	require.NoError(t, a.Remove(freed))
	require.NoError(t, a.SetReferenceNumber(42))
	size := a.SizeInBytes()

	require.NoError(t, a.Commit(context.Background()))
	require.NoError(t, a.Close())

	b, err := Open[rec](path, opts)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, size, b.SizeInBytes())
	ref, err := b.ReferenceNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ref)

	got, err := readChunk(b, small, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("persist me"), got)
	got, err = readChunk(b, big, 128<<10-int64(len(tail)), len(tail))
	require.NoError(t, err)
	assert.Equal(t, tail, got)

	assert.False(t, b.IsValid(freed))
	fps, err := b.FreeList(10)
	require.NoError(t, err)
	assert.Equal(t, []int64{freed}, fps)
	assert.Equal(t, freed, mustAllocate(t, b, 1000), "free list survives reopen")
	require.NoError(t, b.Check())
}

func TestFile_CreateRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.slab")
	a, err := Create[rec](path, testOptions())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = Create[rec](path, testOptions())
	require.ErrorIs(t, err, os.ErrExist)
}

func TestFile_ExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.slab")
	a, err := Create[rec](path, testOptions())
	require.NoError(t, err)
	defer a.Close()

	_, err = Open[rec](path, testOptions())
	require.ErrorIs(t, err, backing.ErrLocked)
}

func TestFile_OpenBadHeader(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.slab")
	_, err := Open[rec](empty, testOptions())
	require.ErrorIs(t, err, ErrBadHeader)

	path := filepath.Join(dir, "bad.slab")
	a, err := Create[rec](path, testOptions())
	require.NoError(t, err)
	require.NoError(t, writeWord(a.buf, format.LengthOfFileOffset, 1<<40))
	require.NoError(t, a.Commit(context.Background()))
	require.NoError(t, a.Close())

	_, err = Open[rec](path, testOptions())
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestFile_CloseDuringExecute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.slab")
	a, err := Create[rec](path, testOptions())
	require.NoError(t, err)
	fp := mustAllocate(t, a, 256)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Execute(a, fp, openRec, TxFunc[rec, int](
			func(_ rec, v *view.Bounded, _ sync.Locker) (int, error) {
				close(entered)
				<-proceed
				return v.WriteAt([]byte("still mapped"), 0)
			}))
		done <- err
	}()
	<-entered

	require.ErrorIs(t, a.Close(), ErrChunkInUse)
	assert.True(t, a.IsValid(fp), "store stays open while a transaction runs")

	close(proceed)
	require.NoError(t, <-done)
	got, err := readChunk(a, fp, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, []byte("still mapped"), got)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "close is idempotent")
	require.ErrorIs(t, writeChunk(a, fp, 0, []byte("x")), ErrClosed)
}
