// Package mmfile provides platform-specific helpers for memory-mapping store
// files: read-write shared mappings of file regions, msync, fdatasync and an
// exclusive advisory lock so two processes never map the same store.
package mmfile

import "errors"

var (
	// ErrLocked indicates another process holds the store's file lock.
	ErrLocked = errors.New("mmfile: file is locked by another process")

	// ErrUnsupported indicates memory mapping is not available on this platform.
	ErrUnsupported = errors.New("mmfile: memory mapping not supported on this platform")
)
