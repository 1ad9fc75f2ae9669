package slab

import (
	"fmt"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/slab/backing"
)

// ChunkInfo describes one chunk record found by Walk.
type ChunkInfo struct {
	FP           int64 `json:"fp"`
	Power        int   `json:"power"`
	Live         bool  `json:"live"`
	Next         int64 `json:"next"`
	PayloadStart int64 `json:"payload_start"`
	PayloadEnd   int64 `json:"payload_end"`
}

// Walk calls fn for every record from the end of the header to the end of
// the store, in file order. It holds the root lock throughout, so fn must not
// call back into the allocator's header operations (Allocate, Remove,
// ReferenceNumber, Commit). A record that is neither live nor freed stops the
// walk with a CorruptionError.
func (a *Allocator[M]) Walk(fn func(ChunkInfo) error) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.st.RootTx(func(root backing.Buffer) error {
		return a.walkLocked(root, fn)
	})
}

func (a *Allocator[M]) walkLocked(root backing.Buffer, fn func(ChunkInfo) error) error {
	limit := a.size.Load()
	for fp := int64(format.HeaderSize); fp < limit; {
		h, err := readRecordHeader(root, fp, limit)
		if err != nil {
			return err
		}
		if !h.live() && !h.freed() {
			return &CorruptionError{FP: fp, Found: h.magic, Reason: "neither live nor free"}
		}
		if !format.ValidPower(h.power) || h.power > format.MaxAllocPower {
			return &CorruptionError{FP: fp, Found: h.magic, Reason: fmt.Sprintf("bad power %d", h.power)}
		}
		start, end := format.PayloadBounds(fp, h.power)
		if end > limit {
			return &CorruptionError{FP: fp, Found: h.magic, Reason: fmt.Sprintf("record ends at %d past store end %d", end, limit)}
		}
		if err := fn(ChunkInfo{
			FP:           fp,
			Power:        h.power,
			Live:         h.live(),
			Next:         h.next,
			PayloadStart: start,
			PayloadEnd:   end,
		}); err != nil {
			return err
		}
		fp = end
	}
	return nil
}

// FreeList returns the fps on power's free list, head first.
func (a *Allocator[M]) FreeList(power int) ([]int64, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if !format.ValidPower(power) {
		return nil, fmt.Errorf("slab: no free list for power %d", power)
	}
	var fps []int64
	err := a.st.RootTx(func(root backing.Buffer) error {
		var err error
		fps, err = a.freeListLocked(root, power)
		return err
	})
	return fps, err
}

func (a *Allocator[M]) freeListLocked(root backing.Buffer, power int) ([]int64, error) {
	limit := a.size.Load()
	fp, err := readWord(root, int64(format.FreeSeek(power)))
	if err != nil {
		return nil, err
	}
	// A list longer than the store could hold records of this class has a
	// cycle.
	maxLen := (limit - format.HeaderSize) / format.RecordSize(power)
	var fps []int64
	for fp != format.NilFP {
		if int64(len(fps)) >= maxLen {
			return fps, &CorruptionError{FP: fp, Reason: fmt.Sprintf("free list %d has a cycle", power)}
		}
		h, err := readRecordHeader(root, fp, limit)
		if err != nil {
			return fps, err
		}
		if !h.freed() || h.power != power {
			return fps, &CorruptionError{FP: fp, Found: h.magic,
				Reason: fmt.Sprintf("free list %d member is not a free chunk of that class", power)}
		}
		fps = append(fps, fp)
		fp = h.next
	}
	return fps, nil
}

// Check verifies the store's structure: records tile the store exactly,
// every free-list member is a freed record of its class, no record is on two
// lists and every freed record is on a list. It returns the first problem
// found. Run it on a quiescent store: a Remove in flight is reported as an
// orphan.
func (a *Allocator[M]) Check() error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.st.RootTx(func(root backing.Buffer) error {
		freed := map[int64]bool{}
		if err := a.walkLocked(root, func(ci ChunkInfo) error {
			if !ci.Live {
				freed[ci.FP] = false
			}
			return nil
		}); err != nil {
			return err
		}

		for p := format.MinPower; p <= format.MaxPower; p++ {
			fps, err := a.freeListLocked(root, p)
			if err != nil {
				return err
			}
			for _, fp := range fps {
				listed, ok := freed[fp]
				if !ok {
					return &CorruptionError{FP: fp, Reason: "free list member is not a record boundary"}
				}
				if listed {
					return &CorruptionError{FP: fp, Reason: "chunk is on two free lists"}
				}
				freed[fp] = true
			}
		}

		for fp, listed := range freed {
			if !listed {
				return &CorruptionError{FP: fp, Reason: "freed chunk is on no free list"}
			}
		}
		return nil
	})
}
