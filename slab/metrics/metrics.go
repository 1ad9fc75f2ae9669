// Package metrics counts allocator activity per size class.
//
// A Sink is owned by one allocator; nothing here is process-global, so
// independent stores (and tests) never see each other's counts.
package metrics

import (
	"sync/atomic"

	"github.com/joshuapare/slabkit/internal/format"
)

// Sink holds per-power counters. The zero value is ready to use; a nil *Sink
// discards everything.
type Sink struct {
	allocs      [format.NumPowerSlots]atomic.Int64
	reuses      [format.NumPowerSlots]atomic.Int64
	removes     [format.NumPowerSlots]atomic.Int64
	doubleFrees [format.NumPowerSlots]atomic.Int64
}

// New returns an empty sink.
func New() *Sink { return &Sink{} }

func slot(power int) (int, bool) {
	if !format.ValidPower(power) {
		return 0, false
	}
	return power - format.MinPower, true
}

func bump(ctrs *[format.NumPowerSlots]atomic.Int64, power int) {
	if i, ok := slot(power); ok {
		ctrs[i].Add(1)
	}
}

// Allocated records a chunk appended at the end of the store.
func (s *Sink) Allocated(power int) {
	if s != nil {
		bump(&s.allocs, power)
	}
}

// Reused records a chunk popped from a free list.
func (s *Sink) Reused(power int) {
	if s != nil {
		bump(&s.reuses, power)
	}
}

// Removed records a chunk returned to its free list.
func (s *Sink) Removed(power int) {
	if s != nil {
		bump(&s.removes, power)
	}
}

// DoubleFreed records a remove of a chunk already at its free-list head.
func (s *Sink) DoubleFreed(power int) {
	if s != nil {
		bump(&s.doubleFrees, power)
	}
}

// Class is the counters of one size class.
type Class struct {
	Power       int   `json:"power"`
	Allocs      int64 `json:"allocs"`
	Reuses      int64 `json:"reuses"`
	Removes     int64 `json:"removes"`
	DoubleFrees int64 `json:"double_frees"`
}

// Snapshot is a point-in-time copy of a sink. Classes with no activity are
// omitted.
type Snapshot struct {
	Classes []Class `json:"classes"`
}

// Snapshot copies the current counters.
func (s *Sink) Snapshot() Snapshot {
	var snap Snapshot
	if s == nil {
		return snap
	}
	for i := range format.NumPowerSlots {
		c := Class{
			Power:       i + format.MinPower,
			Allocs:      s.allocs[i].Load(),
			Reuses:      s.reuses[i].Load(),
			Removes:     s.removes[i].Load(),
			DoubleFrees: s.doubleFrees[i].Load(),
		}
		if c.Allocs|c.Reuses|c.Removes|c.DoubleFrees != 0 {
			snap.Classes = append(snap.Classes, c)
		}
	}
	return snap
}

// Class returns the counters for power; the zero Class if it saw no activity.
func (s Snapshot) Class(power int) Class {
	for _, c := range s.Classes {
		if c.Power == power {
			return c
		}
	}
	return Class{Power: power}
}

// Totals sums every class.
func (s Snapshot) Totals() Class {
	var t Class
	for _, c := range s.Classes {
		t.Allocs += c.Allocs
		t.Reuses += c.Reuses
		t.Removes += c.Removes
		t.DoubleFrees += c.DoubleFrees
	}
	return t
}
