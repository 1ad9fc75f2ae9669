package backing

import (
	"context"
	"sync"

	"github.com/joshuapare/slabkit/slab/dirty"
)

// Heap is an in-memory Buffer. It is used for tests and for stores that do
// not need to outlive the process.
type Heap struct {
	mu     sync.RWMutex
	seg    segments
	closed bool
}

var _ Buffer = (*Heap)(nil)

// NewHeap creates an empty heap buffer with the given segment size.
func NewHeap(segmentSize int64) (*Heap, error) {
	shift, err := segmentShift(segmentSize)
	if err != nil {
		return nil, err
	}
	return &Heap{seg: segments{shift: shift}}, nil
}

func (h *Heap) Size() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seg.Size()
}

func (h *Heap) SegmentSize() int64 { return h.seg.segmentSize() }

func (h *Heap) ReadAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrClosed
	}
	return h.seg.ReadAt(p, off)
}

func (h *Heap) WriteAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrClosed
	}
	return h.seg.WriteAt(p, off)
}

func (h *Heap) Slice(off, n int64) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, false
	}
	return h.seg.Slice(off, n)
}

func (h *Heap) Grow(size int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for h.seg.Size() < size {
		h.seg.segs = append(h.seg.segs, make([]byte, h.seg.segmentSize()))
	}
	return nil
}

func (h *Heap) Duplicate() View {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seg.snapshot()
}

func (h *Heap) FlushData(ctx context.Context) error {
	return ctx.Err()
}

func (h *Heap) FlushHeader(ctx context.Context, _ dirty.FlushMode) error {
	return ctx.Err()
}

func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.seg.segs = nil
	return nil
}
