package testutil

import "github.com/accelkit/devmem/device"

// CopyCall records one Memcpy issued through a SpyAllocator.
type CopyCall struct {
	Dst  uintptr
	Src  uintptr
	N    int64
	Kind device.TransferKind
}

// SpyAllocator satisfies the allocator surface buffers consume, recording
// every call. Allocate hands out deterministic fake addresses. It never
// touches real memory, which makes it suitable for ownership and transfer
// dispatch tests.
type SpyAllocator struct {
	Dev device.Type

	Allocated []int64   // sizes passed to Allocate, in order
	Released  []uintptr // addresses passed to Release, in order
	Copies    []CopyCall
	Zeroed    []uintptr

	next uintptr
}

// NewSpyAllocator returns a spy serving the given device kind.
func NewSpyAllocator(dev device.Type) *SpyAllocator {
	return &SpyAllocator{Dev: dev, next: 0x10000}
}

func (s *SpyAllocator) Allocate(n int64) (uintptr, error) {
	s.Allocated = append(s.Allocated, n)
	p := s.next
	s.next += uintptr((n + 4095) &^ 4095)
	return p, nil
}

func (s *SpyAllocator) Release(p uintptr) {
	s.Released = append(s.Released, p)
}

func (s *SpyAllocator) Memcpy(dst, src uintptr, n int64, kind device.TransferKind) error {
	s.Copies = append(s.Copies, CopyCall{Dst: dst, Src: src, N: n, Kind: kind})
	return nil
}

func (s *SpyAllocator) MemsetZero(p uintptr, n int64) error {
	s.Zeroed = append(s.Zeroed, p)
	return nil
}

func (s *SpyAllocator) Device() device.Type {
	return s.Dev
}
