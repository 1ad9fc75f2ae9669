// Package backing provides the growable byte storage beneath a slab store.
//
// A Buffer is split into fixed-size segments. Growth appends whole segments
// and never moves or unmaps existing ones, so a View duplicated before a grow
// keeps pointing at valid memory; it simply does not see the new tail until
// it is duplicated again.
//
// # Implementations
//
//   - Heap: segments are plain byte slices; nothing is persisted.
//   - File: each segment is a separate shared read-write mmap of the store
//     file; writes are recorded in a dirty.Tracker and flushed with msync.
//
// # Thread Safety
//
// Buffer methods are safe for concurrent use. A View is an immutable snapshot
// of the segment table and may be shared, but callers must serialize writes
// to overlapping byte ranges themselves.
package backing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/slab/dirty"
)

var (
	// ErrOutOfRange indicates an access beyond the buffer's current size.
	ErrOutOfRange = errors.New("backing: access beyond buffer size")

	// ErrClosed indicates the buffer has been closed.
	ErrClosed = errors.New("backing: buffer closed")

	// ErrSegmentSize indicates an unusable segment size.
	ErrSegmentSize = errors.New("backing: segment size must be a power of two")
)

// View is a byte-addressable window over the whole store.
type View interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the number of addressable bytes in this view.
	Size() int64

	// Slice returns the underlying memory for [off, off+n) when the range
	// lies inside a single segment. The returned slice aliases the store.
	Slice(off, n int64) ([]byte, bool)
}

// Buffer is the root, growable view of a store.
type Buffer interface {
	View

	// Grow ensures Size() >= size, appending zeroed segments as needed.
	Grow(size int64) error

	// Duplicate returns a snapshot view of the current segments.
	Duplicate() View

	// SegmentSize returns the size of one segment in bytes.
	SegmentSize() int64

	// FlushData persists dirty ranges other than the header page.
	FlushData(ctx context.Context) error

	// FlushHeader persists the header page and, unless mode is
	// dirty.FlushDataOnly, syncs the file.
	FlushHeader(ctx context.Context, mode dirty.FlushMode) error

	// Close releases all resources. Views obtained from Duplicate must not be
	// used afterwards.
	Close() error
}

// segments is the shared segmented addressing used by both buffers and
// their duplicated views.
type segments struct {
	shift uint
	segs  [][]byte
	dt    dirty.DirtyTracker
}

func segmentShift(size int64) (uint, error) {
	if size <= 0 || size&(size-1) != 0 {
		return 0, fmt.Errorf("%w: %d", ErrSegmentSize, size)
	}
	return uint(bits.TrailingZeros64(uint64(size))), nil
}

func (s *segments) Size() int64 {
	return int64(len(s.segs)) << s.shift
}

func (s *segments) segmentSize() int64 {
	return int64(1) << s.shift
}

// ReadAt copies len(p) bytes at off into p. It never returns a partial read:
// a range beyond Size fails with ErrOutOfRange and p is left untouched.
func (s *segments) ReadAt(p []byte, off int64) (int, error) {
	if _, err := buf.CheckRange(s.Size(), off, int64(len(p))); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	n := 0
	mask := s.segmentSize() - 1
	for n < len(p) {
		pos := off + int64(n)
		seg := s.segs[pos>>s.shift]
		n += copy(p[n:], seg[pos&mask:])
	}
	return n, nil
}

// WriteAt copies p to off. Like ReadAt it is all-or-nothing.
func (s *segments) WriteAt(p []byte, off int64) (int, error) {
	if _, err := buf.CheckRange(s.Size(), off, int64(len(p))); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	n := 0
	mask := s.segmentSize() - 1
	for n < len(p) {
		pos := off + int64(n)
		seg := s.segs[pos>>s.shift]
		n += copy(seg[pos&mask:], p[n:])
	}
	if s.dt != nil {
		s.dt.Add(off, int64(n))
	}
	return n, nil
}

func (s *segments) Slice(off, n int64) ([]byte, bool) {
	end, err := buf.CheckRange(s.Size(), off, n)
	if err != nil {
		return nil, false
	}
	if n == 0 {
		return []byte{}, true
	}
	first, last := off>>s.shift, (end-1)>>s.shift
	if first != last {
		return nil, false
	}
	mask := s.segmentSize() - 1
	start := off & mask
	return s.segs[first][start : start+n : start+n], true
}

// snapshot copies the segment table header; the segments themselves are
// shared.
func (s *segments) snapshot() *segments {
	return &segments{
		shift: s.shift,
		segs:  s.segs[:len(s.segs):len(s.segs)],
		dt:    s.dt,
	}
}
