package view

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/slab/backing"
)

// newTestView returns a view over [start, start+n) of a heap with 1 KiB
// segments.
func newTestView(t *testing.T, start, n int64) (*Bounded, *backing.Heap) {
	t.Helper()
	h, err := backing.NewHeap(1024)
	require.NoError(t, err)
	require.NoError(t, h.Grow(4096))
	t.Cleanup(func() { _ = h.Close() })

	v, err := New(h, start, start+n)
	require.NoError(t, err)
	return v, h
}

func TestNewRejectsWindowOutsideBacking(t *testing.T) {
	h, err := backing.NewHeap(1024)
	require.NoError(t, err)
	require.NoError(t, h.Grow(1024))

	_, err = New(h, 1000, 1100)
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = New(h, 10, 5)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestWriteReadRebasedToZero(t *testing.T) {
	v, h := newTestView(t, 100, 256)

	n, err := v.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, int64(3), v.Position())

	raw := make([]byte, 3)
	_, err = h.ReadAt(raw, 100)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(raw), "offset 0 of the view is the payload start")

	_, err = v.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got := make([]byte, 3)
	_, err = io.ReadFull(v, got)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestWritePastEndWritesNothing(t *testing.T) {
	v, h := newTestView(t, 0, 256)

	for _, p := range []int64{0, 1, 200, 255, 256} {
		n, err := v.WriteAt(bytes.Repeat([]byte{0xEE}, int(257-p)), p)
		require.ErrorIs(t, err, ErrOutOfBounds, "p=%d", p)
		require.Zero(t, n)
	}

	_, err := v.Seek(250, io.SeekStart)
	require.NoError(t, err)
	_, err = v.Write(make([]byte, 7))
	require.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, int64(250), v.Position(), "failed write does not move the cursor")

	// The neighbouring bytes must be untouched.
	after := make([]byte, 16)
	_, err = h.ReadAt(after, 256)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), after)
}

func TestReadAtBounds(t *testing.T) {
	v, _ := newTestView(t, 0, 256)
	_, err := v.ReadAt(make([]byte, 8), 249)
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = v.ReadAt(make([]byte, 8), -1)
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = v.ReadAt(make([]byte, 8), 248)
	require.NoError(t, err)
}

func TestReadStopsAtEnd(t *testing.T) {
	v, _ := newTestView(t, 0, 256)
	_, err := v.Seek(-4, io.SeekEnd)
	require.NoError(t, err)

	p := make([]byte, 10)
	n, err := v.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = v.Read(p)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)
}

func TestSeek(t *testing.T) {
	v, _ := newTestView(t, 0, 256)

	pos, err := v.Seek(10, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	pos, err = v.Seek(5, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(15), pos)

	pos, err = v.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(256), pos)

	_, err = v.Seek(1, io.SeekEnd)
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = v.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = v.Seek(0, 42)
	require.Error(t, err)
	assert.Equal(t, int64(256), v.Position())
}

func TestSetLengthRejected(t *testing.T) {
	v, _ := newTestView(t, 0, 256)
	require.ErrorIs(t, v.SetLength(512), ErrFixedSize)
	require.ErrorIs(t, v.SetLength(256), ErrFixedSize)
}

func TestUint64Helpers(t *testing.T) {
	v, _ := newTestView(t, 0, 256)
	require.NoError(t, v.PutUint64At(248, 0xCAFEBABE))
	got, err := v.Uint64At(248)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xCAFEBABE), got)

	require.ErrorIs(t, v.PutUint64At(249, 1), ErrOutOfBounds)
}

func TestSliceZeroCopy(t *testing.T) {
	// Payload [900, 1156) straddles the 1 KiB segment boundary at 1024.
	v, _ := newTestView(t, 900, 256)

	s, ok := v.Slice(0, 100)
	require.True(t, ok)
	s[0] = 0x42
	b := make([]byte, 1)
	_, err := v.ReadAt(b, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), b[0])

	_, ok = v.Slice(100, 200)
	assert.False(t, ok, "range crosses a segment boundary")

	s, ok = v.Slice(124, 256)
	require.True(t, ok, "range fully inside the second segment")
	assert.Len(t, s, 132)

	_, ok = v.Slice(0, 257)
	assert.False(t, ok)
	_, ok = v.Slice(10, 5)
	assert.False(t, ok)
}

func TestDuplicateHasOwnCursor(t *testing.T) {
	v, _ := newTestView(t, 0, 256)
	_, err := v.Seek(100, io.SeekStart)
	require.NoError(t, err)

	d := v.Duplicate()
	assert.Zero(t, d.Position())
	assert.Equal(t, v.Len(), d.Len())
	assert.Equal(t, v.Start(), d.Start())
	assert.Equal(t, int64(100), v.Position())
}
