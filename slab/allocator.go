package slab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/slab/backing"
	"github.com/joshuapare/slabkit/slab/cache"
	"github.com/joshuapare/slabkit/slab/metrics"
	"github.com/joshuapare/slabkit/slab/stripe"
)

// Allocator owns one store: its header, free lists and chunk cache.
// All methods are safe for concurrent use.
type Allocator[M any] struct {
	st      *stripe.Striper[M]
	buf     backing.Buffer
	opts    Options
	log     *slog.Logger
	metrics *metrics.Sink

	size   atomic.Int64 // mirror of the header's lengthOfFile
	closed atomic.Bool
}

// Create creates a new file-backed store at path. It fails if path already
// holds data.
func Create[M any](path string, opts Options) (*Allocator[M], error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	fb, err := backing.OpenFile(path, opts.SegmentSize)
	if err != nil {
		return nil, err
	}
	if fb.Size() != 0 {
		_ = fb.Close()
		return nil, fmt.Errorf("slab: create %s: %w", path, os.ErrExist)
	}
	a := newAllocator[M](fb, opts)
	if err := a.setupHeader(); err != nil {
		_ = fb.Close()
		return nil, err
	}
	a.log.Info("store created", "path", path, "segment_size", opts.SegmentSize)
	return a, nil
}

// Open opens an existing file-backed store.
func Open[M any](path string, opts Options) (*Allocator[M], error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	fb, err := backing.OpenFile(path, opts.SegmentSize)
	if err != nil {
		return nil, err
	}
	a := newAllocator[M](fb, opts)
	if err := a.loadHeader(); err != nil {
		_ = fb.Close()
		return nil, fmt.Errorf("slab: open %s: %w", path, err)
	}
	a.log.Info("store opened", "path", path, "length", a.size.Load())
	return a, nil
}

// NewMemory creates a heap-backed store that lives as long as the process.
func NewMemory[M any](opts Options) (*Allocator[M], error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	h, err := backing.NewHeap(opts.SegmentSize)
	if err != nil {
		return nil, err
	}
	a := newAllocator[M](h, opts)
	if err := a.setupHeader(); err != nil {
		_ = h.Close()
		return nil, err
	}
	return a, nil
}

func newAllocator[M any](b backing.Buffer, opts Options) *Allocator[M] {
	return &Allocator[M]{
		st: stripe.New[M](b, stripe.Config{
			Stripes:           opts.Stripes,
			MaxNewGeneration:  opts.MaxNewGeneration,
			InitialCacheSlots: opts.InitialCacheSlots,
		}),
		buf:     b,
		opts:    opts,
		log:     opts.logger(),
		metrics: opts.sink(),
	}
}

// setupHeader writes the header of an empty store.
func (a *Allocator[M]) setupHeader() error {
	return a.st.RootTx(func(root backing.Buffer) error {
		if err := root.Grow(format.HeaderSize); err != nil {
			return err
		}
		var hdr [format.HeaderSize]byte
		format.PutI64(hdr[:], format.LengthOfFileOffset, format.HeaderSize)
		format.PutU64(hdr[:], format.ReferenceNumberOffset, 0)
		for p := format.MinPower; p <= format.MaxPower; p++ {
			format.PutI64(hdr[:], format.FreeSeek(p), format.NilFP)
		}
		if _, err := root.WriteAt(hdr[:], 0); err != nil {
			return fmt.Errorf("slab: write header: %w", err)
		}
		a.size.Store(format.HeaderSize)
		return nil
	})
}

// loadHeader validates the header of an existing store.
func (a *Allocator[M]) loadHeader() error {
	return a.st.RootTx(func(root backing.Buffer) error {
		if root.Size() < format.HeaderSize {
			return fmt.Errorf("%w: file holds %d bytes, header needs %d", ErrBadHeader, root.Size(), format.HeaderSize)
		}
		var hdr [format.HeaderSize]byte
		if _, err := root.ReadAt(hdr[:], 0); err != nil {
			return err
		}
		length := format.ReadI64(hdr[:], format.LengthOfFileOffset)
		if length < format.HeaderSize || length > root.Size() {
			return fmt.Errorf("%w: lengthOfFile %d outside [%d, %d]", ErrBadHeader, length, format.HeaderSize, root.Size())
		}
		for p := format.MinPower; p <= format.MaxPower; p++ {
			head := format.ReadI64(hdr[:], format.FreeSeek(p))
			if head != format.NilFP && (head < format.HeaderSize || head >= length) {
				return fmt.Errorf("%w: free list %d head %d outside store", ErrBadHeader, p, head)
			}
		}
		a.size.Store(length)
		return nil
	})
}

func (a *Allocator[M]) checkOpen() error {
	if a.closed.Load() {
		return ErrClosed
	}
	return nil
}

// SizeInBytes returns the logical length of the store. It does not lock.
func (a *Allocator[M]) SizeInBytes() int64 { return a.size.Load() }

// ReferenceNumber returns the caller-assigned version tag from the header.
func (a *Allocator[M]) ReferenceNumber() (uint64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	var ref int64
	err := a.st.RootTx(func(root backing.Buffer) error {
		var err error
		ref, err = readWord(root, format.ReferenceNumberOffset)
		return err
	})
	return uint64(ref), err
}

// SetReferenceNumber stores a version tag in the header. It is persisted by
// the next Commit.
func (a *Allocator[M]) SetReferenceNumber(ref uint64) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.st.RootTx(func(root backing.Buffer) error {
		return writeWord(root, format.ReferenceNumberOffset, int64(ref))
	})
}

// Commit flushes the store to disk: dirty data pages first, then the header
// page, then (unless Options.FlushMode is FlushDataOnly) an fdatasync. The
// context is checked between steps. Heap stores only check the context.
func (a *Allocator[M]) Commit(ctx context.Context) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.st.RootTx(func(root backing.Buffer) error {
		if err := root.FlushData(ctx); err != nil {
			return fmt.Errorf("slab: flush data: %w", err)
		}
		if err := root.FlushHeader(ctx, a.opts.FlushMode); err != nil {
			return fmt.Errorf("slab: flush header: %w", err)
		}
		return nil
	})
}

// Close releases the backing buffer. It waits for running stripe and root
// work to finish, then refuses with an error wrapping ErrChunkInUse while any
// Execute is still inside its transaction; the store stays usable in that
// case. Close does not flush; call Commit first.
func (a *Allocator[M]) Close() error {
	if a.closed.Load() {
		return nil
	}
	err := a.st.Close(func(root backing.Buffer) error {
		return root.Close()
	})
	switch {
	case errors.Is(err, ErrClosed):
		return nil
	case err != nil:
		return fmt.Errorf("slab: close: %w", err)
	}
	a.closed.Store(true)
	a.log.Debug("store closed", "length", a.size.Load())
	return nil
}

// ReadAt reads raw store bytes, header and records included, bypassing the
// cache and every chunk check. The range must lie below SizeInBytes. It is
// meant for inspection tools; concurrent writers are not excluded.
func (a *Allocator[M]) ReadAt(p []byte, off int64) (int, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := a.st.RootTx(func(root backing.Buffer) error {
		if _, err := buf.CheckRange(a.size.Load(), off, int64(len(p))); err != nil {
			return fmt.Errorf("slab: raw read: %w", err)
		}
		var err error
		n, err = root.ReadAt(p, off)
		return err
	})
	return n, err
}

// Roll flips the cache generations of every stripe and returns how many
// flipped. Stripes whose old generation is still in use are skipped.
func (a *Allocator[M]) Roll() int {
	refused := a.st.Stats().Refused
	n := a.st.Roll()
	if r := a.st.Stats().Refused - refused; r > 0 {
		a.log.Debug("generation roll refused", "stripes", r, "rolled", n)
	}
	return n
}

// Stats is a snapshot of allocator activity.
type Stats struct {
	Length  int64            `json:"length"`
	Cache   cache.Stats      `json:"cache"`
	InUse   int64            `json:"in_use"`
	Classes metrics.Snapshot `json:"classes"`
}

// Stats returns the current counters.
func (a *Allocator[M]) Stats() Stats {
	return Stats{
		Length:  a.size.Load(),
		Cache:   a.st.Stats(),
		InUse:   a.st.InUse(),
		Classes: a.metrics.Snapshot(),
	}
}
