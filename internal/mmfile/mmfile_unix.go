//go:build unix

package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MapRW maps length bytes of f starting at off, shared and writable. off must
// be a multiple of the page size and the file must already be at least
// off+length bytes long.
func MapRW(f *os.File, off int64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("mmfile: invalid mapping length %d", length)
	}
	data, err := unix.Mmap(int(f.Fd()), off, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmfile: mmap off=%d len=%d: %w", off, length, err)
	}
	return data, nil
}

// Unmap releases a mapping returned by MapRW.
func Unmap(data []byte) error {
	if data == nil {
		return nil
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// Sync flushes a mapped region to disk. data must start on a page boundary.
func Sync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// Lock takes an exclusive, non-blocking advisory lock on f.
func Lock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrLocked
	}
	return err
}

// Unlock releases the lock taken by Lock.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// PageSize returns the OS page size.
func PageSize() int {
	return unix.Getpagesize()
}
