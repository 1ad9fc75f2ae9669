//go:build unix && !linux

package mmfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// Fdatasync flushes f to stable storage.
//
// Only Linux has fdatasync; elsewhere fall back to fsync.
func Fdatasync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
