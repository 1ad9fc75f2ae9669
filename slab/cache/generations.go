package cache

import (
	"errors"
	"fmt"
)

// Opener materializes the entry for fp on a cache miss. The returned entry
// must not be acquired yet.
type Opener[M any] func(fp int64) (*Chunk[M], error)

// Stats counts generation activity.
type Stats struct {
	Hits     int64 // acquires served from the young generation
	Revivals int64 // acquires served by moving an entry out of the old generation
	Opens    int64 // acquires that called the opener
	Rolls    int64 // generation flips performed
	Refused  int64 // flips skipped because the old generation was in use
	Young    int   // current young generation size
	Old      int   // current old generation size
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Hits += o.Hits
	s.Revivals += o.Revivals
	s.Opens += o.Opens
	s.Rolls += o.Rolls
	s.Refused += o.Refused
	s.Young += o.Young
	s.Old += o.Old
}

// Generations is a two-epoch cache. See the package documentation for the
// eviction protocol.
type Generations[M any] struct {
	old          *Generation[M]
	young        *Generation[M]
	maxYoung     int
	initialSlots int
	stats        Stats
}

// NewGenerations returns an empty cache whose young generation rolls over
// once it holds more than maxYoung entries.
func NewGenerations[M any](maxYoung, initialSlots int) *Generations[M] {
	return &Generations[M]{
		old:          NewGeneration[M](initialSlots),
		young:        NewGeneration[M](initialSlots),
		maxYoung:     maxYoung,
		initialSlots: initialSlots,
	}
}

// Set inserts c into the young generation without acquiring it.
func (gs *Generations[M]) Set(c *Chunk[M]) error {
	return gs.young.Set(c)
}

// Acquire returns the acquired entry for fp, reviving it from the old
// generation or calling open on a miss.
func (gs *Generations[M]) Acquire(fp int64, open Opener[M]) (*Chunk[M], error) {
	if gs.young.Len() > gs.maxYoung {
		gs.slough()
	}

	if c := gs.young.AcquireIfPresent(fp); c != nil {
		gs.stats.Hits++
		return c, nil
	}

	if c := gs.old.Remove(fp); c != nil {
		if err := gs.young.PromoteAndAcquire(c); err != nil {
			// Put it back so outstanding holders can still release it.
			if rerr := gs.old.Set(c); rerr != nil {
				err = errors.Join(err, fmt.Errorf("cache: restore fp %d to old generation: %w", fp, rerr))
			}
			return nil, err
		}
		gs.stats.Revivals++
		return c, nil
	}

	c, err := open(fp)
	if err != nil {
		return nil, err
	}
	if err := gs.young.PromoteAndAcquire(c); err != nil {
		return nil, err
	}
	gs.stats.Opens++
	return c, nil
}

// slough drops the old generation and demotes the young one, provided no
// entry in the old generation is acquired.
func (gs *Generations[M]) slough() bool {
	if !gs.old.IsRemovable() {
		gs.stats.Refused++
		return false
	}
	gs.old = gs.young
	gs.young = NewGeneration[M](gs.initialSlots)
	gs.stats.Rolls++
	return true
}

// Roll performs the same flip as an overfull Acquire, on demand. It is a
// no-op when both generations are empty and reports whether a flip happened.
func (gs *Generations[M]) Roll() bool {
	if gs.young.Len() == 0 && gs.old.Len() == 0 {
		return false
	}
	return gs.slough()
}

// Release drops one acquisition of fp.
func (gs *Generations[M]) Release(fp int64) error {
	switch {
	case gs.young.Contains(fp):
		_, err := gs.young.Release(fp)
		return err
	case gs.old.Contains(fp):
		_, err := gs.old.Release(fp)
		return err
	default:
		return fmt.Errorf("%w: fp %d not cached", ErrNotAcquired, fp)
	}
}

// Remove evicts fp and returns the evicted entry (nil if it was not cached).
// An entry that is still acquired is not evicted: it is marked
// pending-delete, so its last release evicts it, and ErrChunkInUse is
// returned.
func (gs *Generations[M]) Remove(fp int64) (*Chunk[M], error) {
	for _, g := range [...]*Generation[M]{gs.young, gs.old} {
		c := g.Get(fp)
		if c == nil {
			continue
		}
		if c.acquisitions > 0 {
			c.pendingDelete = true
			return c, fmt.Errorf("%w: fp %d has %d acquisitions", ErrChunkInUse, fp, c.acquisitions)
		}
		return g.Remove(fp), nil
	}
	return nil, nil
}

// Contains reports whether fp is cached in either generation.
func (gs *Generations[M]) Contains(fp int64) bool {
	return gs.young.Contains(fp) || gs.old.Contains(fp)
}

// Get returns the cached entry for fp without acquiring it.
func (gs *Generations[M]) Get(fp int64) *Chunk[M] {
	if c := gs.young.Get(fp); c != nil {
		return c
	}
	return gs.old.Get(fp)
}

// InUse returns the outstanding acquisitions across both generations.
func (gs *Generations[M]) InUse() int64 {
	return gs.young.InUse() + gs.old.InUse()
}

// Stats returns a snapshot of the counters.
func (gs *Generations[M]) Stats() Stats {
	s := gs.stats
	s.Young = gs.young.Len()
	s.Old = gs.old.Len()
	return s
}
