// Package format describes the on-disk layout of a slab store: the fixed
// header at offset 0 and the chunk records that follow it. It holds only
// constants and pure arithmetic so the allocator, the inspection tools and
// the tests agree on every offset.
package format

import "math/bits"

// Store header layout (little-endian):
//
//	Offset  Size              Description
//	0x00    8                 lengthOfFile: logical end of allocated space
//	0x08    8                 referenceNumber: caller-assigned version tag
//	0x10    8*NumPowerSlots   freeListHeads[MinPower..MaxPower]
const (
	// LengthOfFileOffset is the header offset of the logical end of the store.
	LengthOfFileOffset = 0x00

	// ReferenceNumberOffset is the header offset of the caller's version tag.
	ReferenceNumberOffset = 0x08

	// FreeListOffset is the header offset of the first free-list head.
	FreeListOffset = 0x10

	// MinPower is log2 of the smallest chunk payload (256 bytes).
	MinPower = 8

	// MaxPower is the largest power with a free-list slot. Slots run from
	// MinPower to MaxPower inclusive, i.e. up to the exclusive bound 64.
	MaxPower = 63

	// MaxAllocPower is the largest power a chunk can actually be allocated
	// with; a 2^63 payload is not addressable by an int64 file pointer.
	MaxAllocPower = 62

	// NumPowerSlots is the number of free-list heads stored in the header.
	NumPowerSlots = MaxPower - MinPower + 1

	// HeaderSize is the total size of the store header. The first chunk
	// record starts here.
	HeaderSize = FreeListOffset + 8*NumPowerSlots
)

// Chunk record layout (little-endian), located at the chunk's fp:
//
//	Offset  Size          Description
//	0x00    8             magic: Magic while live, 0 once removed
//	0x08    8             chunkPower: log2 of the payload size
//	0x10    8             nextFreeFP: free-list link, NilFP unless free
//	0x18    8             chunkLength: 2^chunkPower, or -1 mid-removal
//	0x20    2^chunkPower  payload
const (
	ChunkMagicOffset  = 0x00
	ChunkPowerOffset  = 0x08
	ChunkNextOffset   = 0x10
	ChunkLengthOffset = 0x18

	// ChunkHeaderSize is the number of bytes preceding every chunk payload.
	ChunkHeaderSize = 0x20
)

const (
	// Magic marks a live chunk record.
	Magic uint64 = 0xFFFFFFFFFFFFFFFF

	// FreedMagic replaces Magic when a chunk is removed.
	FreedMagic uint64 = 0

	// NilFP terminates a free list and marks an empty free-list head.
	NilFP int64 = -1

	// RemovingLength is written to chunkLength while a chunk is being zeroed.
	RemovingLength int64 = -1
)

// FreeSeek returns the header offset holding the free-list head for power.
// The caller must ensure MinPower <= power <= MaxPower.
func FreeSeek(power int) int {
	return FreeListOffset + 8*(power-MinPower)
}

// ValidPower reports whether power has a free-list slot.
func ValidPower(power int) bool {
	return power >= MinPower && power <= MaxPower
}

// PowerFor returns the smallest power whose payload holds size bytes, never
// below MinPower.
//
// Example:
//
//	PowerFor(0)   = 8
//	PowerFor(256) = 8
//	PowerFor(257) = 9
//	PowerFor(1024) = 10
func PowerFor(size int64) int {
	if size <= 1<<MinPower {
		return MinPower
	}
	return bits.Len64(uint64(size - 1))
}

// PayloadSize returns the payload size of a chunk of the given power.
func PayloadSize(power int) int64 {
	return int64(1) << power
}

// RecordSize returns the total on-disk size of a chunk of the given power.
func RecordSize(power int) int64 {
	return ChunkHeaderSize + PayloadSize(power)
}

// PayloadBounds returns the absolute [start, end) payload range of the chunk
// at fp with the given power.
func PayloadBounds(fp int64, power int) (start, end int64) {
	start = fp + ChunkHeaderSize
	return start, start + PayloadSize(power)
}
