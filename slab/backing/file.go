package backing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joshuapare/slabkit/internal/mmfile"
	"github.com/joshuapare/slabkit/slab/dirty"
)

// ErrLocked indicates another process already has the store file open.
var ErrLocked = mmfile.ErrLocked

// File is a Buffer backed by a memory-mapped file. Each segment is mapped
// separately so growing never remaps (and never invalidates) earlier memory.
type File struct {
	mu      sync.RWMutex
	f       *os.File
	seg     segments
	tracker *dirty.Tracker
	closed  bool
}

var _ Buffer = (*File)(nil)

// OpenFile opens or creates the store file at path, takes an exclusive lock
// on it and maps it in segmentSize pieces. A file whose size is not a
// multiple of segmentSize is extended with zeros to the next multiple.
func OpenFile(path string, segmentSize int64) (*File, error) {
	shift, err := segmentShift(segmentSize)
	if err != nil {
		return nil, err
	}
	if segmentSize%int64(mmfile.PageSize()) != 0 {
		return nil, fmt.Errorf("%w: %d is not a multiple of the page size", ErrSegmentSize, segmentSize)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := mmfile.Lock(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("backing: lock %s: %w", path, err)
	}

	fb := &File{
		f:       f,
		tracker: dirty.NewTracker(mmfile.PageSize()),
	}
	fb.seg = segments{shift: shift, dt: fb.tracker}

	st, err := f.Stat()
	if err != nil {
		_ = fb.Close()
		return nil, err
	}
	if sz := st.Size(); sz > 0 {
		if err := fb.growLocked(sz); err != nil {
			_ = fb.Close()
			return nil, err
		}
	}
	return fb, nil
}

func (fb *File) Size() int64 {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.seg.Size()
}

func (fb *File) SegmentSize() int64 { return fb.seg.segmentSize() }

func (fb *File) ReadAt(p []byte, off int64) (int, error) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	if fb.closed {
		return 0, ErrClosed
	}
	return fb.seg.ReadAt(p, off)
}

func (fb *File) WriteAt(p []byte, off int64) (int, error) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	if fb.closed {
		return 0, ErrClosed
	}
	return fb.seg.WriteAt(p, off)
}

func (fb *File) Slice(off, n int64) ([]byte, bool) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	if fb.closed {
		return nil, false
	}
	return fb.seg.Slice(off, n)
}

func (fb *File) Duplicate() View {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.seg.snapshot()
}

// Grow extends the file to a whole number of segments covering size and maps
// the new segments. New bytes are zero-initialized by the OS.
func (fb *File) Grow(size int64) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.closed {
		return ErrClosed
	}
	return fb.growLocked(size)
}

func (fb *File) growLocked(size int64) error {
	if size <= fb.seg.Size() {
		return nil
	}
	segSize := fb.seg.segmentSize()
	want := (size + segSize - 1) >> fb.seg.shift << fb.seg.shift

	st, err := fb.f.Stat()
	if err != nil {
		return err
	}
	if st.Size() < want {
		if err := fb.f.Truncate(want); err != nil {
			return fmt.Errorf("backing: failed to extend file to %d: %w", want, err)
		}
	}

	for off := fb.seg.Size(); off < want; off += segSize {
		data, err := mmfile.MapRW(fb.f, off, int(segSize))
		if err != nil {
			return fmt.Errorf("backing: failed to map segment at %d: %w", off, err)
		}
		fb.seg.segs = append(fb.seg.segs, data)
	}
	return nil
}

// FlushData msyncs every dirty page except the header page. On failure the
// unflushed ranges are kept for the next attempt.
func (fb *File) FlushData(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	if fb.closed {
		return ErrClosed
	}

	ranges := fb.tracker.Take()
	page := int64(mmfile.PageSize())
	for i, r := range ranges {
		if r.Off == 0 {
			// Header page is flushed by FlushHeader.
			r = dirty.Range{Off: page, Len: r.Len - page}
		}
		if err := ctx.Err(); err != nil {
			fb.tracker.Restore(ranges[i:])
			return err
		}
		if err := fb.syncRange(r); err != nil {
			fb.tracker.Restore(ranges[i:])
			return err
		}
	}
	return nil
}

// syncRange msyncs r, split on segment boundaries. Segments are page-aligned
// mappings, so every piece starts on a page boundary.
func (fb *File) syncRange(r dirty.Range) error {
	mask := fb.seg.segmentSize() - 1
	for off, end := r.Off, min(r.End(), fb.seg.Size()); off < end; {
		seg := fb.seg.segs[off>>fb.seg.shift]
		start := off & mask
		n := min(int64(len(seg))-start, end-off)
		if err := mmfile.Sync(seg[start : start+n]); err != nil {
			return fmt.Errorf("backing: msync at %d: %w", off, err)
		}
		off += n
	}
	return nil
}

// FlushHeader msyncs the header page, then makes the file durable according
// to mode: fdatasync for FlushAuto, fsync for FlushFull, nothing more for
// FlushDataOnly.
func (fb *File) FlushHeader(ctx context.Context, mode dirty.FlushMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	if fb.closed {
		return ErrClosed
	}
	if len(fb.seg.segs) == 0 {
		return nil
	}

	first := fb.seg.segs[0]
	headerLen := min(mmfile.PageSize(), len(first))
	if err := mmfile.Sync(first[:headerLen]); err != nil {
		return fmt.Errorf("backing: msync header: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	switch mode {
	case dirty.FlushDataOnly:
		return nil
	case dirty.FlushFull:
		if err := fb.f.Sync(); err != nil {
			return fmt.Errorf("backing: fsync: %w", err)
		}
		return nil
	default:
		return mmfile.Fdatasync(fb.f)
	}
}

// Close unmaps every segment, releases the lock and closes the file.
func (fb *File) Close() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.closed {
		return nil
	}
	fb.closed = true

	var errs []error
	for _, data := range fb.seg.segs {
		errs = append(errs, mmfile.Unmap(data))
	}
	fb.seg.segs = nil
	errs = append(errs, mmfile.Unlock(fb.f), fb.f.Close())
	return errors.Join(errs...)
}
