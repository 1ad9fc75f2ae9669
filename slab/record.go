package slab

import (
	"fmt"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/slab/backing"
)

// recordHeader is the decoded 32-byte header of a chunk record.
type recordHeader struct {
	magic  uint64
	power  int
	next   int64
	length int64
}

func (h recordHeader) live() bool { return h.magic == format.Magic }

// freed reports whether the record has been through Remove.
func (h recordHeader) freed() bool {
	return h.magic == format.FreedMagic && h.length == format.RemovingLength && format.ValidPower(h.power)
}

func readWord(v backing.View, off int64) (int64, error) {
	var w [8]byte
	if _, err := v.ReadAt(w[:], off); err != nil {
		return 0, err
	}
	return format.ReadI64(w[:], 0), nil
}

func writeWord(v backing.View, off, val int64) error {
	var w [8]byte
	format.PutI64(w[:], 0, val)
	_, err := v.WriteAt(w[:], off)
	return err
}

// readRecordHeader decodes the record header at fp. An fp whose header does
// not fit inside [HeaderSize, limit) is reported as corruption.
func readRecordHeader(v backing.View, fp, limit int64) (recordHeader, error) {
	if fp < format.HeaderSize || fp > limit-format.ChunkHeaderSize {
		return recordHeader{}, &CorruptionError{FP: fp, Reason: fmt.Sprintf("fp outside [%d, %d)", format.HeaderSize, limit)}
	}
	var b [format.ChunkHeaderSize]byte
	if _, err := v.ReadAt(b[:], fp); err != nil {
		return recordHeader{}, fmt.Errorf("slab: read record at %d: %w", fp, err)
	}
	return recordHeader{
		magic:  format.ReadU64(b[:], format.ChunkMagicOffset),
		power:  int(format.ReadI64(b[:], format.ChunkPowerOffset)),
		next:   format.ReadI64(b[:], format.ChunkNextOffset),
		length: format.ReadI64(b[:], format.ChunkLengthOffset),
	}, nil
}

// readLive returns the header at fp if it is a well-formed live chunk.
func readLive(v backing.View, fp, limit int64) (recordHeader, error) {
	h, err := readRecordHeader(v, fp, limit)
	if err != nil {
		return h, err
	}
	if !h.live() {
		return h, &CorruptionError{FP: fp, Found: h.magic, Reason: "bad magic"}
	}
	if !format.ValidPower(h.power) || h.power > format.MaxAllocPower {
		return h, &CorruptionError{FP: fp, Found: h.magic, Reason: fmt.Sprintf("bad power %d", h.power)}
	}
	if _, end := format.PayloadBounds(fp, h.power); end > limit || end < fp {
		return h, &CorruptionError{FP: fp, Found: h.magic, Reason: fmt.Sprintf("payload end %d beyond %d", end, limit)}
	}
	return h, nil
}

// writeLiveHeader writes a complete live record header at fp.
func writeLiveHeader(v backing.View, fp int64, power int) error {
	var b [format.ChunkHeaderSize]byte
	format.PutU64(b[:], format.ChunkMagicOffset, format.Magic)
	format.PutI64(b[:], format.ChunkPowerOffset, int64(power))
	format.PutI64(b[:], format.ChunkNextOffset, format.NilFP)
	format.PutI64(b[:], format.ChunkLengthOffset, format.PayloadSize(power))
	if _, err := v.WriteAt(b[:], fp); err != nil {
		return fmt.Errorf("slab: write record at %d: %w", fp, err)
	}
	return nil
}

// zeroBlock is the bulk source for payload zero-fill.
var zeroBlock [64 << 10]byte

// zeroPayload clears [start, end) in 64 KiB writes followed by the remainder.
func zeroPayload(v backing.View, start, end int64) error {
	for off := start; off < end; {
		n := min(end-off, int64(len(zeroBlock)))
		if _, err := v.WriteAt(zeroBlock[:n], off); err != nil {
			return fmt.Errorf("slab: zero payload at %d: %w", off, err)
		}
		off += n
	}
	return nil
}
