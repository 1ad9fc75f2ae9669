package slab

import (
	"errors"
	"io"
	"log/slog"

	"github.com/joshuapare/slabkit/slab/dirty"
	"github.com/joshuapare/slabkit/slab/metrics"
)

// Options configures an Allocator.
type Options struct {
	// Stripes is the number of independent lock/cache shards.
	Stripes int

	// MaxNewGeneration is the young cache generation size, per stripe, past
	// which the next access tries to roll generations.
	MaxNewGeneration int

	// SegmentSize is the unit of growth of the backing buffer. Must be a
	// power of two; file stores also need a multiple of the page size.
	SegmentSize int64

	// InitialCacheSlots is the starting capacity of each cache generation.
	InitialCacheSlots int

	// FlushMode is the durability level of Commit.
	FlushMode dirty.FlushMode

	// Logger receives lifecycle and diagnostic events. Nil discards them.
	Logger *slog.Logger

	// Metrics receives per-size-class counters. Nil creates a private sink.
	Metrics *metrics.Sink
}

// DefaultOptions is a sensible configuration for a store of a few hundred
// megabytes accessed by a handful of goroutines. Copy it and adjust fields.
var DefaultOptions = Options{
	Stripes:           16,
	MaxNewGeneration:  1024,
	SegmentSize:       16 << 20, // 16 MiB
	InitialCacheSlots: 64,
	FlushMode:         dirty.FlushAuto,
}

const minSegmentSize = 4096

func checkOptions(opts Options) error {
	if opts.Stripes < 1 {
		return errors.New("slab/options: invalid stripe count")
	}
	if opts.MaxNewGeneration < 0 {
		return errors.New("slab/options: invalid max new generation size")
	}
	if opts.SegmentSize < minSegmentSize || opts.SegmentSize&(opts.SegmentSize-1) != 0 {
		return errors.New("slab/options: segment size must be a power of two >= 4096")
	}
	if opts.InitialCacheSlots < 1 {
		return errors.New("slab/options: invalid initial cache slots")
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) sink() *metrics.Sink {
	if o.Metrics != nil {
		return o.Metrics
	}
	return metrics.New()
}
