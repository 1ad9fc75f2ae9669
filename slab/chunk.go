package slab

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/slab/backing"
	"github.com/joshuapare/slabkit/slab/cache"
	"github.com/joshuapare/slabkit/slab/stripe"
	"github.com/joshuapare/slabkit/slab/view"
)

// Allocate reserves a chunk large enough for cf.SizeInBytes(hint), lets cf
// initialize it and caches the resulting monkey. It returns the chunk's fp.
//
// A chunk popped from a free list is preferred over growing the store. If
// cf.Create fails the chunk is removed again and the error returned.
func Allocate[H, M any](a *Allocator[M], hint H, cf CreateFiler[H, M]) (int64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	power := format.PowerFor(max(cf.SizeInBytes(hint), 0))
	if power > format.MaxAllocPower {
		return 0, fmt.Errorf("%w: size class 2^%d", ErrTooLarge, power)
	}

	var fp int64
	var reused bool
	err := a.st.RootTx(func(root backing.Buffer) error {
		var err error
		fp, reused, err = a.reserve(root, power)
		return err
	})
	if err != nil {
		return 0, err
	}
	if reused {
		a.metrics.Reused(power)
	} else {
		a.metrics.Allocated(power)
	}

	err = a.st.Tx(fp, func(s *stripe.Stripe[M]) error {
		h, err := readLive(s.View(), fp, a.size.Load())
		if err != nil {
			return err
		}
		start, end := format.PayloadBounds(fp, h.power)
		v, err := view.New(s.View(), start, end)
		if err != nil {
			return err
		}
		m, err := cf.Create(hint, v)
		if err != nil {
			return err
		}
		return s.Cache().Set(cache.NewChunk(m, fp, start, end))
	})
	if err != nil {
		if rerr := a.Remove(fp); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return 0, err
	}
	return fp, nil
}

// reserve pops the head of power's free list or appends a new record. It
// runs under the root lock.
func (a *Allocator[M]) reserve(root backing.Buffer, power int) (fp int64, reused bool, err error) {
	headOff := int64(format.FreeSeek(power))
	head, err := readWord(root, headOff)
	if err != nil {
		return 0, false, err
	}

	if head != format.NilFP {
		h, err := readRecordHeader(root, head, a.size.Load())
		if err != nil {
			return 0, false, err
		}
		if !h.freed() || h.power != power {
			return 0, false, &CorruptionError{FP: head, Found: h.magic,
				Reason: fmt.Sprintf("free list %d head is not a free chunk of that class", power)}
		}
		if err := writeWord(root, headOff, h.next); err != nil {
			return 0, false, err
		}
		if err := writeLiveHeader(root, head, power); err != nil {
			return 0, false, err
		}
		return head, true, nil
	}

	fp = a.size.Load()
	end, ok := buf.AddOverflowSafe(fp, format.RecordSize(power))
	if !ok {
		return 0, false, fmt.Errorf("%w: store end %d + 2^%d overflows", ErrTooLarge, fp, power)
	}
	if end > root.Size() {
		if err := root.Grow(end); err != nil {
			return 0, false, fmt.Errorf("slab: grow to %d: %w", end, err)
		}
		a.log.Debug("store grown", "length", end, "mapped", root.Size())
	}
	if err := writeLiveHeader(root, fp, power); err != nil {
		return 0, false, err
	}
	if err := writeWord(root, format.LengthOfFileOffset, end); err != nil {
		return 0, false, err
	}
	a.size.Store(end)
	return fp, false, nil
}

// Execute runs tx against the chunk at fp. The monkey comes from the cache,
// or from of.Open on a miss. The entry is acquired for the duration of tx, so
// tx runs without holding any lock, and is released on every exit path.
func Execute[M, R any](a *Allocator[M], fp int64, of OpenFiler[M], tx Transaction[M, R]) (res R, err error) {
	if err := a.checkOpen(); err != nil {
		return res, err
	}

	var c *cache.Chunk[M]
	var snapshot backing.View
	var lock sync.Locker
	err = a.st.Tx(fp, func(s *stripe.Stripe[M]) error {
		var err error
		c, err = s.Cache().Acquire(fp, func(fp int64) (*cache.Chunk[M], error) {
			return a.open(s.View(), fp, of)
		})
		snapshot, lock = s.View(), s.Locker()
		return err
	})
	if err != nil {
		return res, err
	}
	defer func() {
		rerr := a.st.Tx(fp, func(s *stripe.Stripe[M]) error {
			return s.Cache().Release(fp)
		})
		if rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	v, err := view.New(snapshot, c.Start, c.End)
	if err != nil {
		return res, err
	}
	return tx.Commit(c.Monkey, v, lock)
}

// open validates the record at fp and builds its cache entry.
func (a *Allocator[M]) open(v backing.View, fp int64, of OpenFiler[M]) (*cache.Chunk[M], error) {
	h, err := readLive(v, fp, a.size.Load())
	if err != nil {
		return nil, err
	}
	start, end := format.PayloadBounds(fp, h.power)
	bv, err := view.New(v, start, end)
	if err != nil {
		return nil, err
	}
	m, err := of.Open(bv)
	if err != nil {
		return nil, fmt.Errorf("slab: open chunk %d: %w", fp, err)
	}
	return cache.NewChunk(m, fp, start, end), nil
}

// Remove frees the chunk at fp: its cache entry is evicted, its magic
// cleared, its payload zeroed and the record pushed on its free list.
//
// A chunk still acquired by a running Execute is left intact; its entry is
// marked for eviction on release and ErrChunkInUse is returned. Removing a
// chunk twice is logged, counted and reported as ErrDoubleFree.
func (a *Allocator[M]) Remove(fp int64) error {
	if err := a.checkOpen(); err != nil {
		return err
	}

	var power int
	var already bool
	err := a.st.Tx(fp, func(s *stripe.Stripe[M]) error {
		if _, err := s.Cache().Remove(fp); err != nil {
			return err
		}
		limit := a.size.Load()
		h, err := readRecordHeader(s.View(), fp, limit)
		if err != nil {
			return err
		}
		if h.freed() {
			power, already = h.power, true
			return nil
		}
		if h, err = readLive(s.View(), fp, limit); err != nil {
			return err
		}
		power = h.power

		var w [8]byte
		format.PutU64(w[:], 0, format.FreedMagic)
		if _, err := s.View().WriteAt(w[:], fp+format.ChunkMagicOffset); err != nil {
			return err
		}
		if err := writeWord(s.View(), fp+format.ChunkLengthOffset, format.RemovingLength); err != nil {
			return err
		}
		start, end := format.PayloadBounds(fp, power)
		return zeroPayload(s.View(), start, end)
	})
	if err != nil {
		return err
	}

	return a.st.RootTx(func(root backing.Buffer) error {
		return a.pushFree(root, fp, power, already)
	})
}

// pushFree links fp in as the head of power's free list. It runs under the
// root lock.
func (a *Allocator[M]) pushFree(root backing.Buffer, fp int64, power int, already bool) error {
	headOff := int64(format.FreeSeek(power))
	head, err := readWord(root, headOff)
	if err != nil {
		return err
	}
	if head == fp || already {
		a.metrics.DoubleFreed(power)
		a.log.Warn("double free",
			"fp", fp,
			"power", power,
			"head", head,
			"stack", string(debug.Stack()))
		return fmt.Errorf("%w: fp %d (size class 2^%d)", ErrDoubleFree, fp, power)
	}
	if err := writeWord(root, fp+format.ChunkNextOffset, head); err != nil {
		return err
	}
	if err := writeWord(root, headOff, fp); err != nil {
		return err
	}
	a.metrics.Removed(power)
	return nil
}

// IsValid reports whether fp holds a live chunk: either it is cached, or the
// record at fp carries the live magic. It does not prove fp was returned by
// Allocate on this store.
func (a *Allocator[M]) IsValid(fp int64) bool {
	if a.checkOpen() != nil {
		return false
	}
	valid := false
	_ = a.st.Tx(fp, func(s *stripe.Stripe[M]) error {
		if s.Cache().Contains(fp) {
			valid = true
			return nil
		}
		h, err := readRecordHeader(s.View(), fp, a.size.Load())
		valid = err == nil && h.live()
		return nil
	})
	return valid
}
