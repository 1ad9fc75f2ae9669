package slab

import (
	"errors"
	"fmt"

	"github.com/joshuapare/slabkit/slab/cache"
	"github.com/joshuapare/slabkit/slab/stripe"
)

var (
	// ErrCorrupt is matched by every CorruptionError.
	ErrCorrupt = errors.New("slab: corrupt chunk")

	// ErrDoubleFree indicates a remove of a chunk that is already free. The
	// free list is left untouched.
	ErrDoubleFree = errors.New("slab: chunk removed twice")

	// ErrClosed indicates use of a closed allocator.
	ErrClosed = stripe.ErrClosed

	// ErrTooLarge indicates an allocation whose size class exceeds the
	// largest addressable chunk.
	ErrTooLarge = errors.New("slab: allocation too large")

	// ErrBadHeader indicates a store whose header is inconsistent with the
	// file it lives in.
	ErrBadHeader = errors.New("slab: bad store header")

	// ErrChunkInUse indicates a remove of a chunk another goroutine is still
	// executing against.
	ErrChunkInUse = cache.ErrChunkInUse
)

// CorruptionError reports a chunk record that does not look like a live
// chunk at the expected fp.
type CorruptionError struct {
	FP     int64
	Found  uint64 // magic word read at FP
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("slab: corrupt chunk at fp %d (magic 0x%016X): %s", e.FP, e.Found, e.Reason)
}

// Is makes errors.Is(err, ErrCorrupt) match.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorrupt
}
