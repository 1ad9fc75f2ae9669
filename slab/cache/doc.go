// Package cache holds parsed chunk state ("monkeys") between accesses.
//
// # Overview
//
// A Generation maps chunk file pointers to Chunk entries through a fixed
// capacity slot index and counts outstanding acquisitions. Generations pairs
// two of them to evict safely while readers still hold entries:
//
//   - New entries always go into the young generation.
//   - When the young generation outgrows its limit, the old generation is
//     discarded and the young one takes its place, but only if nothing in
//     the old generation is acquired. Otherwise the roll is refused and
//     retried on a later Acquire.
//   - An entry found only in the old generation is revived: moved, together
//     with its acquisitions, into the young generation.
//
// An entry is therefore never dropped while any goroutine holds it.
//
// # Thread Safety
//
// Nothing in this package locks. Each Generations value belongs to one
// stripe and is only touched under that stripe's lock.
package cache

import "errors"

var (
	// ErrNotAcquired indicates a Release without a matching acquire.
	ErrNotAcquired = errors.New("cache: chunk released but not acquired")

	// ErrChunkInUse indicates an attempt to remove an entry that is still
	// acquired. The entry is marked pending-delete instead.
	ErrChunkInUse = errors.New("cache: chunk is acquired by a concurrent reader")

	// errIndexFull is returned by slot index Add when every slot is taken.
	errIndexFull = errors.New("cache: slot index full")
)
