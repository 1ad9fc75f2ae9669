// Package stripe shards chunk access across independent locks.
//
// A Striper owns the root buffer of a store. Header and free-list mutation
// runs through RootTx under a single root lock. Everything else is routed by
// chunk fp to one of N stripes; each stripe has its own lock, its own
// duplicated view of the buffer and its own two-generation cache, so chunks in
// different stripes never contend.
//
// Stripes are created on first use. A stripe's view is re-duplicated when the
// root buffer has grown past it, never patched in place.
package stripe

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/slabkit/slab/backing"
	"github.com/joshuapare/slabkit/slab/cache"
)

// ErrClosed is returned by every transaction once Close has succeeded.
var ErrClosed = errors.New("stripe: store closed")

// fibMul is 2^64 / phi, used for Fibonacci hashing of fps.
const fibMul = 0x9E3779B97F4A7C15

// Config sizes a Striper.
type Config struct {
	Stripes           int
	MaxNewGeneration  int
	InitialCacheSlots int
}

// Stripe is one shard. Its fields are only valid inside the Tx body that
// received it.
type Stripe[M any] struct {
	mu    sync.Mutex
	view  backing.View
	cache *cache.Generations[M]
}

// View returns the stripe's duplicated view of the store.
func (s *Stripe[M]) View() backing.View { return s.view }

// Cache returns the stripe's chunk cache.
func (s *Stripe[M]) Cache() *cache.Generations[M] { return s.cache }

// Locker returns the stripe lock, for callers that must re-enter the stripe
// from outside Tx.
func (s *Stripe[M]) Locker() sync.Locker { return &s.mu }

// Striper routes operations to stripes.
type Striper[M any] struct {
	root   backing.Buffer
	rootMu sync.Mutex

	mu      sync.Mutex // guards lazy creation of stripes
	stripes []*Stripe[M]
	cfg     Config

	closed atomic.Bool // set only while every lock is held
}

// New returns a Striper over root with cfg.Stripes shards.
func New[M any](root backing.Buffer, cfg Config) *Striper[M] {
	if cfg.Stripes < 1 {
		cfg.Stripes = 1
	}
	return &Striper[M]{
		root:    root,
		stripes: make([]*Stripe[M], cfg.Stripes),
		cfg:     cfg,
	}
}

// Root returns the root buffer.
func (s *Striper[M]) Root() backing.Buffer { return s.root }

// Len returns the number of stripes.
func (s *Striper[M]) Len() int { return len(s.stripes) }

// Index returns the stripe that owns fp.
func (s *Striper[M]) Index(fp int64) int {
	h := (uint64(fp) * fibMul) >> 32
	return int(h % uint64(len(s.stripes)))
}

func (s *Striper[M]) stripe(i int) *Stripe[M] {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stripes[i]
	if st == nil {
		st = &Stripe[M]{
			cache: cache.NewGenerations[M](s.cfg.MaxNewGeneration, s.cfg.InitialCacheSlots),
		}
		s.stripes[i] = st
	}
	return st
}

// materialized returns the stripes created so far.
func (s *Striper[M]) materialized() []*Stripe[M] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stripe[M], 0, len(s.stripes))
	for _, st := range s.stripes {
		if st != nil {
			out = append(out, st)
		}
	}
	return out
}

// Tx runs body under the lock of the stripe owning fp.
func (s *Striper[M]) Tx(fp int64, body func(*Stripe[M]) error) error {
	st := s.stripe(s.Index(fp))
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	if st.view == nil || s.root.Size() > st.view.Size() {
		st.view = s.root.Duplicate()
	}
	return body(st)
}

// RootTx runs body under the root lock. No cache is involved.
func (s *Striper[M]) RootTx(body func(backing.Buffer) error) error {
	s.rootMu.Lock()
	defer s.rootMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	return body(s.root)
}

// Close takes every stripe lock in index order and then the root lock, and
// runs body with the whole store quiesced. While any chunk is still acquired
// it returns an error wrapping cache.ErrChunkInUse and the store stays open.
// Once body succeeds every later Tx and RootTx fails with ErrClosed.
func (s *Striper[M]) Close(body func(backing.Buffer) error) error {
	all := make([]*Stripe[M], len(s.stripes))
	for i := range all {
		all[i] = s.stripe(i)
	}
	for _, st := range all {
		st.mu.Lock()
	}
	s.rootMu.Lock()
	defer func() {
		s.rootMu.Unlock()
		for _, st := range all {
			st.mu.Unlock()
		}
	}()

	if s.closed.Load() {
		return ErrClosed
	}
	var held int64
	for _, st := range all {
		held += st.cache.InUse()
	}
	if held > 0 {
		return fmt.Errorf("%w: %d acquisitions outstanding", cache.ErrChunkInUse, held)
	}
	if err := body(s.root); err != nil {
		return err
	}
	s.closed.Store(true)
	return nil
}

// Roll flips the cache generations of every stripe that exists and returns
// how many flipped.
func (s *Striper[M]) Roll() int {
	n := 0
	for _, st := range s.materialized() {
		st.mu.Lock()
		if st.cache.Roll() {
			n++
		}
		st.mu.Unlock()
	}
	return n
}

// Stats sums cache counters over all stripes.
func (s *Striper[M]) Stats() cache.Stats {
	var total cache.Stats
	for _, st := range s.materialized() {
		st.mu.Lock()
		total.Add(st.cache.Stats())
		st.mu.Unlock()
	}
	return total
}

// InUse returns outstanding chunk acquisitions over all stripes.
func (s *Striper[M]) InUse() int64 {
	var n int64
	for _, st := range s.materialized() {
		st.mu.Lock()
		n += st.cache.InUse()
		st.mu.Unlock()
	}
	return n
}
