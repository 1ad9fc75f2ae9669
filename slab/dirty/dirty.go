// Package dirty provides tracking of dirty byte ranges in memory-mapped
// store files.
//
// The tracker maintains a list of dirty byte ranges and coalesces them into
// page-aligned ranges at flush time. Flushing itself (msync) is done by the
// backing buffer, which knows how the file is split into mappings.
package dirty

import (
	"sort"
	"sync"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// FlushMode controls durability guarantees for a commit.
type FlushMode int

const (
	// FlushAuto msyncs dirty data pages, then the header page, then calls
	// fdatasync.
	FlushAuto FlushMode = iota

	// FlushDataOnly only msyncs dirty pages. The caller is responsible for
	// calling fdatasync later; use this when batching commits.
	FlushDataOnly

	// FlushFull behaves like FlushAuto but ends with fsync, so file metadata
	// such as the modification time is synced too.
	FlushFull
)

// Range represents a dirty byte range (absolute file offsets).
type Range struct {
	Off int64 // Absolute offset in file
	Len int64 // Length in bytes
}

// End returns the exclusive end offset of the range.
func (r Range) End() int64 { return r.Off + r.Len }

// DirtyTracker is the minimal interface for components that only need to
// report modified regions (views, the allocator's header writes).
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	Add(off, length int64)
}

// Tracker accumulates dirty ranges. It is safe for concurrent use: stripes
// write through their own views and all of them report here.
type Tracker struct {
	mu       sync.Mutex
	ranges   []Range
	pageSize int64
}

// NewTracker creates a tracker that aligns ranges to pageSize. A pageSize
// <= 0 selects 4096.
func NewTracker(pageSize int) *Tracker {
	ps := int64(pageSize)
	if ps <= 0 {
		ps = standardPageSize
	}
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: ps,
	}
}

// Add records a dirty range. Empty ranges are ignored.
func (t *Tracker) Add(off, length int64) {
	if length <= 0 {
		return
	}
	t.mu.Lock()
	t.ranges = append(t.ranges, Range{Off: off, Len: length})
	t.mu.Unlock()
}

// Take returns the coalesced dirty ranges and clears the tracker. Ranges
// added concurrently with Take land in the next batch.
func (t *Tracker) Take() []Range {
	t.mu.Lock()
	defer t.mu.Unlock()
	merged := coalesce(t.ranges, t.pageSize)
	t.ranges = t.ranges[:0]
	return merged
}

// Restore puts ranges back after a failed flush so a retry picks them up.
func (t *Tracker) Restore(rs []Range) {
	t.mu.Lock()
	t.ranges = append(t.ranges, rs...)
	t.mu.Unlock()
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ranges into a new slice.
func coalesce(ranges []Range, pageSize int64) []Range {
	if len(ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(ranges))
	for i, r := range ranges {
		start := (r.Off / pageSize) * pageSize
		end := r.Off + r.Len
		if end%pageSize != 0 {
			end = ((end / pageSize) + 1) * pageSize
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.End() {
			if next.End() > current.End() {
				current.Len = next.End() - current.Off
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
