package main

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/joshuapare/slabkit/slab"
	"github.com/joshuapare/slabkit/slab/view"
)

// digestLive streams the payload of the live chunk at fp through xxh3.
func digestLive(a *slab.Allocator[noop], fp int64) (uint64, error) {
	return slab.Execute(a, fp, openNoop, slab.TxFunc[noop, uint64](
		func(_ noop, v *view.Bounded, _ sync.Locker) (uint64, error) {
			h := xxh3.New()
			if _, err := io.Copy(h, v); err != nil {
				return 0, err
			}
			return h.Sum64(), nil
		}))
}

var zeros [64 << 10]byte

// checkZeroed reports an error if the freed payload [start, end) holds any
// non-zero byte.
func checkZeroed(a *slab.Allocator[noop], fp, start, end int64) error {
	r := io.NewSectionReader(a, start, end-start)
	chunk := make([]byte, len(zeros))
	for off := int64(0); ; {
		n, err := r.Read(chunk)
		if n > 0 {
			if !bytes.Equal(chunk[:n], zeros[:n]) {
				for i, b := range chunk[:n] {
					if b != 0 {
						return fmt.Errorf("freed chunk %d: non-zero payload byte at offset %d", fp, off+int64(i))
					}
				}
			}
			off += int64(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("freed chunk %d: %w", fp, err)
		}
	}
}
