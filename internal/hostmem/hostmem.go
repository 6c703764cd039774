// Package hostmem implements device.Backend over host memory. On unix the
// pages come from anonymous mmap; elsewhere a heap-backed fallback keeps the
// allocation alive for as long as it is tracked.
package hostmem

import (
	"fmt"
	"unsafe"

	"github.com/accelkit/devmem/device"
)

// Backend allocates real host memory. Not goroutine-safe; the pool above it
// already requires external serialization.
type Backend struct {
	// regions maps allocation start address to its backing slice, which both
	// keeps fallback allocations reachable and supplies the length to unmap.
	regions map[uintptr][]byte
}

// New returns a host backend.
func New() *Backend {
	return &Backend{regions: make(map[uintptr][]byte)}
}

// Malloc allocates n bytes of host memory.
func (b *Backend) Malloc(n int64) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("hostmem: malloc of %d bytes", n)
	}
	buf, err := mapBytes(int(n))
	if err != nil {
		return 0, fmt.Errorf("hostmem: malloc %d bytes: %w", n, err)
	}
	p := uintptr(unsafe.Pointer(&buf[0]))
	b.regions[p] = buf
	return p, nil
}

// Free releases an address previously returned by Malloc. Unknown addresses
// are rejected: they signal a double free or a foreign pointer.
func (b *Backend) Free(p uintptr) error {
	buf, ok := b.regions[p]
	if !ok {
		return fmt.Errorf("hostmem: free of unknown address %#x", p)
	}
	delete(b.regions, p)
	return unmapBytes(buf)
}

// Memcpy copies n bytes between host addresses. Only HostToHost transfers
// make sense for this backend.
func (b *Backend) Memcpy(dst, src uintptr, n int64, kind device.TransferKind) error {
	if kind != device.HostToHost {
		return fmt.Errorf("hostmem: unsupported transfer kind %s", kind)
	}
	if n == 0 {
		return nil
	}
	d := unsafe.Slice((*byte)(unsafe.Pointer(dst)), n)
	s := unsafe.Slice((*byte)(unsafe.Pointer(src)), n)
	copy(d, s)
	return nil
}

// MemsetZero zeroes n bytes at p.
func (b *Backend) MemsetZero(p uintptr, n int64) error {
	if n == 0 {
		return nil
	}
	clear(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
	return nil
}

var _ device.Backend = (*Backend)(nil)
