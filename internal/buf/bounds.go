// Package buf contains overflow-safe range arithmetic shared by the views
// and backing buffers of a slab store.
package buf

import (
	"errors"
	"fmt"
	"math"
)

// ErrRange is wrapped by every CheckRange failure.
var ErrRange = errors.New("buf: range outside limit")

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int64.
func AddOverflowSafe(a, b int64) (int64, bool) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, false
	case b < 0 && a < math.MinInt64-b:
		return 0, false
	default:
		return a + b, true
	}
}

// CheckRange validates that the n bytes starting at off fit in [0, limit).
// Returns the exclusive end offset if valid, or an error wrapping ErrRange
// describing the specific failure (negative input, overflow or out of bounds).
//
//	end, err := buf.CheckRange(v.Len(), pos, int64(len(p)))
//	if err != nil {
//	    return 0, fmt.Errorf("write: %w", err)
//	}
func CheckRange(limit, off, n int64) (int64, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrRange, off)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrRange, n)
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok {
		return 0, fmt.Errorf("%w: overflow off=%d + n=%d", ErrRange, off, n)
	}
	if end > limit {
		return 0, fmt.Errorf("%w: end=%d > len=%d", ErrRange, end, limit)
	}
	return end, nil
}
