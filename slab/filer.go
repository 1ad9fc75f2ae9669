package slab

import (
	"sync"

	"github.com/joshuapare/slabkit/slab/view"
)

// CreateFiler builds the monkey of a freshly allocated chunk.
type CreateFiler[H, M any] interface {
	// SizeInBytes returns the payload size needed for hint.
	SizeInBytes(hint H) int64
	// Create initializes the payload and returns its monkey.
	Create(hint H, v *view.Bounded) (M, error)
}

// OpenFiler builds the monkey of an existing chunk on a cache miss.
type OpenFiler[M any] interface {
	Open(v *view.Bounded) (M, error)
}

// Transaction is the body of an Execute call. The view is positioned at the
// start of the payload; lock is the chunk's stripe lock, for transactions
// that need to serialize with other accesses to the stripe.
type Transaction[M, R any] interface {
	Commit(monkey M, v *view.Bounded, lock sync.Locker) (R, error)
}

// CreateFuncs adapts a pair of functions to CreateFiler.
type CreateFuncs[H, M any] struct {
	SizeFn   func(hint H) int64
	CreateFn func(hint H, v *view.Bounded) (M, error)
}

func (f CreateFuncs[H, M]) SizeInBytes(hint H) int64 { return f.SizeFn(hint) }

func (f CreateFuncs[H, M]) Create(hint H, v *view.Bounded) (M, error) { return f.CreateFn(hint, v) }

// OpenFunc adapts a function to OpenFiler.
type OpenFunc[M any] func(v *view.Bounded) (M, error)

func (f OpenFunc[M]) Open(v *view.Bounded) (M, error) { return f(v) }

// TxFunc adapts a function to Transaction.
type TxFunc[M, R any] func(monkey M, v *view.Bounded, lock sync.Locker) (R, error)

func (f TxFunc[M, R]) Commit(monkey M, v *view.Bounded, lock sync.Locker) (R, error) {
	return f(monkey, v, lock)
}
