//go:build linux

package mmfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// Fdatasync flushes f's data (not necessarily its metadata) to stable storage.
func Fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
