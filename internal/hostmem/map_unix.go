//go:build unix

package hostmem

import (
	"errors"

	"golang.org/x/sys/unix"
)

// mapBytes allocates n bytes of anonymous, page-aligned memory.
func mapBytes(n int) ([]byte, error) {
	return unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// unmapBytes releases a mapping created by mapBytes.
func unmapBytes(buf []byte) error {
	err := unix.Munmap(buf)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
