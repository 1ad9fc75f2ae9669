//go:build !unix

package mmfile

import "os"

// MapRW is unavailable on this platform; stores must use the heap backing.
func MapRW(*os.File, int64, int) ([]byte, error) { return nil, ErrUnsupported }

// Unmap is a no-op on this platform.
func Unmap([]byte) error { return nil }

// Sync is a no-op on this platform.
func Sync([]byte) error { return nil }

// Lock is a no-op on this platform.
func Lock(*os.File) error { return nil }

// Unlock is a no-op on this platform.
func Unlock(*os.File) error { return nil }

// PageSize returns the common 4 KiB page size.
func PageSize() int { return 4096 }

// Fdatasync falls back to File.Sync.
func Fdatasync(f *os.File) error { return f.Sync() }
