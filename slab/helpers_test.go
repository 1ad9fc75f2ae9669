package slab

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/slab/view"
)

// rec is the monkey used throughout the tests: it remembers the payload size
// it was built over and how it was built.
type rec struct {
	size    int64
	created bool
}

var recFiler = CreateFuncs[int64, rec]{
	SizeFn: func(n int64) int64 { return n },
	CreateFn: func(_ int64, v *view.Bounded) (rec, error) {
		return rec{size: v.Len(), created: true}, nil
	},
}

var openRec = OpenFunc[rec](func(v *view.Bounded) (rec, error) {
	return rec{size: v.Len()}, nil
})

func testOptions() Options {
	opts := DefaultOptions
	opts.Stripes = 4
	opts.MaxNewGeneration = 32
	opts.SegmentSize = 64 << 10
	opts.InitialCacheSlots = 8
	return opts
}

func newTestAllocator(t *testing.T) *Allocator[rec] {
	t.Helper()
	a, err := NewMemory[rec](testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func mustAllocate(t *testing.T, a *Allocator[rec], size int64) int64 {
	t.Helper()
	fp, err := Allocate(a, size, recFiler)
	require.NoError(t, err)
	return fp
}

func writeChunk(a *Allocator[rec], fp, off int64, p []byte) error {
	_, err := Execute(a, fp, openRec, TxFunc[rec, int](
		func(_ rec, v *view.Bounded, _ sync.Locker) (int, error) {
			return v.WriteAt(p, off)
		}))
	return err
}

func readChunk(a *Allocator[rec], fp, off int64, n int) ([]byte, error) {
	return Execute(a, fp, openRec, TxFunc[rec, []byte](
		func(_ rec, v *view.Bounded, _ sync.Locker) ([]byte, error) {
			out := make([]byte, n)
			if _, err := v.ReadAt(out, off); err != nil {
				return nil, err
			}
			return out, nil
		}))
}

// rawMagic reads the magic word at fp straight from the backing buffer,
// bypassing the cache.
func rawMagic(t *testing.T, a *Allocator[rec], fp int64) uint64 {
	t.Helper()
	w, err := readWord(a.buf, fp)
	require.NoError(t, err)
	return uint64(w)
}
