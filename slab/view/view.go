// Package view provides Bounded, a cursor over exactly one chunk's payload.
//
// A Bounded view re-bases the chunk payload [start, end) of a backing view
// to [0, Len()). Every access is checked against that window: writes that
// would cross the end fail with ErrOutOfBounds and write nothing, so a
// caller bug can never spill into the neighbouring chunk's header.
//
// Views are cheap values handed to open/create callbacks and transactions;
// they are not safe for concurrent use, use Duplicate to give each goroutine
// its own cursor.
package view

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/slab/backing"
)

var (
	// ErrOutOfBounds indicates an access outside the chunk payload.
	ErrOutOfBounds = errors.New("view: access outside chunk bounds")

	// ErrFixedSize is returned by SetLength; chunks never change size.
	ErrFixedSize = errors.New("view: chunk size is fixed")
)

// Bounded is a bounds-checked cursor over one chunk payload.
type Bounded struct {
	v     backing.View
	start int64
	end   int64
	pos   int64
}

var (
	_ io.ReadWriteSeeker = (*Bounded)(nil)
	_ io.ReaderAt        = (*Bounded)(nil)
	_ io.WriterAt        = (*Bounded)(nil)
)

// New returns a view over the absolute range [start, end) of v.
func New(v backing.View, start, end int64) (*Bounded, error) {
	if start < 0 || end < start || end > v.Size() {
		return nil, fmt.Errorf("%w: window [%d, %d) outside backing size %d",
			ErrOutOfBounds, start, end, v.Size())
	}
	return &Bounded{v: v, start: start, end: end}, nil
}

// Len returns the payload size.
func (b *Bounded) Len() int64 { return b.end - b.start }

// Start returns the absolute offset of the payload in the store.
func (b *Bounded) Start() int64 { return b.start }

// Position returns the cursor position relative to the payload start.
func (b *Bounded) Position() int64 { return b.pos }

// Duplicate returns an independent cursor over the same payload, positioned
// at 0.
func (b *Bounded) Duplicate() *Bounded {
	return &Bounded{v: b.v, start: b.start, end: b.end}
}

func (b *Bounded) check(off, n int64) error {
	if _, err := buf.CheckRange(b.Len(), off, n); err != nil {
		return fmt.Errorf("%w: %w", ErrOutOfBounds, err)
	}
	return nil
}

// Read reads up to len(p) bytes from the cursor. At the end of the payload it
// returns io.EOF; it never reads past the payload.
func (b *Bounded) Read(p []byte) (int, error) {
	remaining := b.Len() - b.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := b.v.ReadAt(p, b.start+b.pos)
	b.pos += int64(n)
	return n, err
}

// Write writes all of p at the cursor, or nothing if p does not fit.
func (b *Bounded) Write(p []byte) (int, error) {
	n, err := b.WriteAt(p, b.pos)
	b.pos += int64(n)
	return n, err
}

// ReadAt fills p from payload offset off. The whole range must be in bounds.
func (b *Bounded) ReadAt(p []byte, off int64) (int, error) {
	if err := b.check(off, int64(len(p))); err != nil {
		return 0, err
	}
	return b.v.ReadAt(p, b.start+off)
}

// WriteAt writes p at payload offset off. The whole range must be in bounds.
func (b *Bounded) WriteAt(p []byte, off int64) (int, error) {
	if err := b.check(off, int64(len(p))); err != nil {
		return 0, err
	}
	return b.v.WriteAt(p, b.start+off)
}

// Seek moves the cursor. The target must lie in [0, Len()].
func (b *Bounded) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = b.pos
	case io.SeekEnd:
		base = b.Len()
	default:
		return b.pos, fmt.Errorf("view: invalid whence %d", whence)
	}
	target, ok := buf.AddOverflowSafe(base, offset)
	if !ok || target < 0 || target > b.Len() {
		return b.pos, fmt.Errorf("%w: seek to %d+%d, len %d", ErrOutOfBounds, base, offset, b.Len())
	}
	b.pos = target
	return target, nil
}

// SetLength always fails: chunk sizes are fixed at allocation.
func (b *Bounded) SetLength(int64) error {
	return ErrFixedSize
}

// Uint64At reads a little-endian uint64 at payload offset off.
func (b *Bounded) Uint64At(off int64) (uint64, error) {
	var w [8]byte
	if _, err := b.ReadAt(w[:], off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(w[:]), nil
}

// PutUint64At writes a little-endian uint64 at payload offset off.
func (b *Bounded) PutUint64At(off int64, v uint64) error {
	var w [8]byte
	binary.LittleEndian.PutUint64(w[:], v)
	_, err := b.WriteAt(w[:], off)
	return err
}

// Slice returns the store memory backing payload range [start, end) without
// copying. It reports false when the range is out of bounds or is not
// contiguous in the backing store; callers then fall back to ReadAt/WriteAt.
// The returned slice aliases the store and must not be retained after the
// chunk is removed.
func (b *Bounded) Slice(start, end int64) ([]byte, bool) {
	if end < start || b.check(start, end-start) != nil {
		return nil, false
	}
	return b.v.Slice(b.start+start, end-start)
}
