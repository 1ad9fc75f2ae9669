// Package slab implements a chunk allocator over a single growable region of
// bytes, either a memory-mapped file or the heap.
//
// # Overview
//
// The region starts with a fixed header (logical length, a caller-assigned
// reference number and one free-list head per size class) followed by chunk
// records. Every chunk holds a power-of-two payload of at least 256 bytes
// behind a 32-byte record header. Chunks are identified by their file
// pointer (fp), the offset of the record in the region.
//
// Callers attach a typed, parsed view of a chunk (its "monkey", type M) via
// the CreateFiler and OpenFiler callbacks. Monkeys are cached per fp and
// reused until evicted.
//
// # Operations
//
//   - Allocate: pop a chunk from the size class's free list, or append one,
//     then build and cache its monkey.
//   - Execute: acquire the cached monkey (opening it on a miss), run a
//     Transaction against a fresh view of the payload, release it.
//   - Remove: evict the cache entry, zero the payload, push the chunk on
//     its free list.
//   - IsValid: report whether fp holds a live chunk.
//
// # Concurrency
//
// Header and free-list changes run under one root lock. Chunk access is
// sharded by fp across stripes (see package stripe); chunks in different
// stripes never contend. Transactions run outside every lock, holding a
// reference on the cache entry so it cannot be evicted underneath them.
//
// # Usage Example
//
//	a, err := slab.Create("store.slab", slab.DefaultOptions)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	fp, err := slab.Allocate(a, 257, slab.CreateFuncs[int, Record]{
//	    SizeFn:   func(n int) int64 { return int64(n) },
//	    CreateFn: newRecord,
//	})
//	...
//	n, err := slab.Execute(a, fp, slab.OpenFunc[Record](openRecord),
//	    slab.TxFunc[Record, int](func(r Record, v *view.Bounded, _ sync.Locker) (int, error) {
//	        return v.Write(payload)
//	    }))
//
// # Durability
//
// Writes land in the mapping immediately. Commit flushes dirty data pages,
// then the header page, then syncs the file. There is no journal: a crash
// between commits can leave a partially written chunk.
package slab
