package cache

import (
	"encoding/binary"

	"github.com/cockroachdb/swiss"
)

// key is the 8-byte little-endian encoding of a chunk fp.
type key = [8]byte

func fpKey(fp int64) key {
	var k key
	binary.LittleEndian.PutUint64(k[:], uint64(fp))
	return k
}

// slotIndex maps byte keys to dense slot numbers in [0, capacity). Slots of
// removed keys are reused. A Generation stores its chunks in a parallel slice
// indexed by slot.
type slotIndex interface {
	// Add returns the slot for k, assigning a free one if k is new.
	Add(k key) (int, error)
	// Get returns the slot for k, or -1.
	Get(k key) int
	// Remove deletes k and returns its slot, or -1.
	Remove(k key) int
	IsFull() bool
	Len() int
	Cap() int
	// NextGrowSize returns the capacity a replacement index should have.
	NextGrowSize() int
	// CopyTo adds every key to dst, reporting each old->new slot move.
	CopyTo(dst slotIndex, relocate func(oldSlot, newSlot int)) error
}

// swissIndex is a slotIndex over a swiss table.
type swissIndex struct {
	m        *swiss.Map[key, int]
	capacity int
	free     []int
	next     int
}

var _ slotIndex = (*swissIndex)(nil)

func newSwissIndex(capacity int) *swissIndex {
	if capacity < 1 {
		capacity = 1
	}
	return &swissIndex{
		m:        swiss.New[key, int](capacity),
		capacity: capacity,
	}
}

func (s *swissIndex) Add(k key) (int, error) {
	if slot, ok := s.m.Get(k); ok {
		return slot, nil
	}
	if s.IsFull() {
		return -1, errIndexFull
	}
	var slot int
	if n := len(s.free); n > 0 {
		slot = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		slot = s.next
		s.next++
	}
	s.m.Put(k, slot)
	return slot, nil
}

func (s *swissIndex) Get(k key) int {
	if slot, ok := s.m.Get(k); ok {
		return slot
	}
	return -1
}

func (s *swissIndex) Remove(k key) int {
	slot, ok := s.m.Get(k)
	if !ok {
		return -1
	}
	s.m.Delete(k)
	s.free = append(s.free, slot)
	return slot
}

func (s *swissIndex) IsFull() bool      { return s.m.Len() >= s.capacity }
func (s *swissIndex) Len() int          { return s.m.Len() }
func (s *swissIndex) Cap() int          { return s.capacity }
func (s *swissIndex) NextGrowSize() int { return s.capacity * 2 }

func (s *swissIndex) CopyTo(dst slotIndex, relocate func(oldSlot, newSlot int)) error {
	var err error
	s.m.All(func(k key, slot int) bool {
		var ns int
		ns, err = dst.Add(k)
		if err != nil {
			return false
		}
		relocate(slot, ns)
		return true
	})
	return err
}
