package cache

import "fmt"

// defaultInitialSlots is the slot capacity of a fresh generation.
const defaultInitialSlots = 64

// Generation is a single cache epoch: an fp -> slot index plus the parallel
// slot array, and the sum of acquisitions over all its entries.
type Generation[M any] struct {
	index slotIndex
	slots []*Chunk[M]
	inUse int64
}

// NewGeneration returns an empty generation with room for initialSlots
// entries before its first grow.
func NewGeneration[M any](initialSlots int) *Generation[M] {
	if initialSlots <= 0 {
		initialSlots = defaultInitialSlots
	}
	idx := newSwissIndex(initialSlots)
	return &Generation[M]{
		index: idx,
		slots: make([]*Chunk[M], idx.Cap()),
	}
}

// Len returns the number of cached entries.
func (g *Generation[M]) Len() int { return g.index.Len() }

// InUse returns the total outstanding acquisitions across all entries.
func (g *Generation[M]) InUse() int64 { return g.inUse }

// IsRemovable reports whether no entry in this generation is acquired, so
// the whole generation can be dropped.
func (g *Generation[M]) IsRemovable() bool { return g.inUse == 0 }

// Get returns the entry for fp without acquiring it.
func (g *Generation[M]) Get(fp int64) *Chunk[M] {
	slot := g.index.Get(fpKey(fp))
	if slot < 0 {
		return nil
	}
	return g.slots[slot]
}

// Contains reports whether fp is cached in this generation.
func (g *Generation[M]) Contains(fp int64) bool {
	return g.index.Get(fpKey(fp)) >= 0
}

// Set stores c, replacing any entry with the same fp. The acquisitions c
// already carries are added to the generation's in-use count.
func (g *Generation[M]) Set(c *Chunk[M]) error {
	if g.index.IsFull() && !g.Contains(c.FP) {
		if err := g.grow(); err != nil {
			return err
		}
	}
	slot, err := g.index.Add(fpKey(c.FP))
	if err != nil {
		return err
	}
	if old := g.slots[slot]; old != nil {
		g.inUse -= old.acquisitions
	}
	g.slots[slot] = c
	g.inUse += c.acquisitions
	return nil
}

// PromoteAndAcquire stores c and acquires it.
func (g *Generation[M]) PromoteAndAcquire(c *Chunk[M]) error {
	if err := g.Set(c); err != nil {
		return err
	}
	g.acquire(c)
	return nil
}

// AcquireIfPresent acquires and returns the entry for fp, or nil.
func (g *Generation[M]) AcquireIfPresent(fp int64) *Chunk[M] {
	c := g.Get(fp)
	if c != nil {
		g.acquire(c)
	}
	return c
}

func (g *Generation[M]) acquire(c *Chunk[M]) {
	c.acquisitions++
	g.inUse++
}

// Release drops one acquisition of fp. An entry marked pending-delete is
// evicted when its last acquisition is released; evicted reports that.
func (g *Generation[M]) Release(fp int64) (evicted bool, err error) {
	c := g.Get(fp)
	if c == nil || c.acquisitions <= 0 {
		return false, fmt.Errorf("%w: fp %d", ErrNotAcquired, fp)
	}
	c.acquisitions--
	g.inUse--
	if c.acquisitions == 0 && c.pendingDelete {
		g.Remove(fp)
		return true, nil
	}
	return false, nil
}

// Remove evicts fp unconditionally and returns the evicted entry, or nil.
// Outstanding acquisitions leave the generation with the entry.
func (g *Generation[M]) Remove(fp int64) *Chunk[M] {
	slot := g.index.Remove(fpKey(fp))
	if slot < 0 {
		return nil
	}
	c := g.slots[slot]
	g.slots[slot] = nil
	if c != nil {
		g.inUse -= c.acquisitions
	}
	return c
}

// grow replaces the index with one of NextGrowSize capacity and moves every
// entry to its new slot.
func (g *Generation[M]) grow() error {
	idx := newSwissIndex(g.index.NextGrowSize())
	slots := make([]*Chunk[M], idx.Cap())
	err := g.index.CopyTo(idx, func(oldSlot, newSlot int) {
		slots[newSlot] = g.slots[oldSlot]
	})
	if err != nil {
		return fmt.Errorf("cache: grow to %d slots: %w", idx.Cap(), err)
	}
	g.index = idx
	g.slots = slots
	return nil
}
