package cache

// Chunk is the cached state of one open chunk: the caller's parsed monkey
// and the absolute payload bounds it was built from.
type Chunk[M any] struct {
	Monkey M
	FP     int64
	Start  int64
	End    int64

	acquisitions  int64
	pendingDelete bool
}

// NewChunk returns an unacquired entry.
func NewChunk[M any](monkey M, fp, start, end int64) *Chunk[M] {
	return &Chunk[M]{Monkey: monkey, FP: fp, Start: start, End: end}
}

// Acquisitions returns the number of outstanding acquires.
func (c *Chunk[M]) Acquisitions() int64 { return c.acquisitions }

// PendingDelete reports whether the entry will be evicted on its last release.
func (c *Chunk[M]) PendingDelete() bool { return c.pendingDelete }
