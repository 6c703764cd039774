// Package buffer provides the ownership handle tying a device memory region's
// lifetime to the pool it came from.
//
// # Ownership
//
// An owning Buffer releases its address back to its allocator exactly once,
// when the last co-owner calls Close. Co-ownership is minted only through
// Retain: constructing a second owning Buffer around a raw address is not
// expressible, which rules out the double-release that pattern invites.
//
// # External Buffers
//
// A Buffer built with NewExternal wraps memory owned by outside code. It
// never calls into the allocator's release path; whether the memory is still
// alive is the true owner's problem, and a stale external buffer is a
// documented use-after-free hazard this design cannot prevent.
//
// # Misuse
//
// Double Close, Allocate on an already-backed buffer, copying with an unknown
// device type, and releasing through a nil allocator all panic: these are
// memory-safety bugs, not recoverable conditions.
package buffer

import (
	"fmt"
	"io"

	"github.com/accelkit/devmem/device"
	"github.com/accelkit/devmem/device/alloc"
)

// Buffer is a handle to a device memory region. The zero value is not usable;
// construct through New, NewAllocated, or NewExternal.
//
// Buffer is not goroutine-safe, matching the pools beneath it.
type Buffer struct {
	size     int64
	ptr      uintptr
	external bool
	dev      device.Type
	alloc    alloc.Allocator
	refs     int32
}

var _ io.Closer = (*Buffer)(nil)

// New returns an unallocated owning buffer of the given size bound to a. The
// device type defaults to the allocator's device. Call Allocate before use.
func New(size int64, a alloc.Allocator) *Buffer {
	b := &Buffer{size: size, alloc: a, refs: 1}
	if a != nil {
		b.dev = a.Device()
	}
	return b
}

// NewAllocated returns an owning buffer with memory already allocated.
func NewAllocated(size int64, a alloc.Allocator) (*Buffer, error) {
	b := New(size, a)
	if err := b.Allocate(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewExternal wraps memory owned by outside code. The buffer never releases
// ptr; a may be nil if the buffer will not be the destination of a copy.
func NewExternal(a alloc.Allocator, ptr uintptr, size int64, dev device.Type) *Buffer {
	return &Buffer{size: size, ptr: ptr, external: true, dev: dev, alloc: a, refs: 1}
}

// Allocate obtains the buffer's memory from its allocator. Allocating an
// external or already-backed buffer is a lifecycle bug.
func (b *Buffer) Allocate() error {
	if b.external {
		panic("buffer: allocate on external buffer")
	}
	if b.ptr != 0 {
		panic("buffer: allocate on already-allocated buffer")
	}
	if b.alloc == nil {
		panic("buffer: allocate with nil allocator")
	}
	ptr, err := b.alloc.Allocate(b.size)
	if err != nil {
		return fmt.Errorf("buffer: allocate %d bytes: %w", b.size, err)
	}
	b.ptr = ptr
	return nil
}

// Retain adds a co-owner and returns the same buffer. Release back to the
// pool is deferred until every co-owner has called Close. This is the only
// path to multi-ownership.
func (b *Buffer) Retain() *Buffer {
	if b.refs <= 0 {
		panic("buffer: retain on closed buffer")
	}
	b.refs++
	return b
}

// Close drops one co-owner. The last Close on an owning buffer releases the
// address to the allocator exactly once and zeroes it; on an external buffer
// it performs no deallocation. Closing more times than Retain+1 panics.
func (b *Buffer) Close() error {
	if b.refs <= 0 {
		panic("buffer: close of closed buffer")
	}
	b.refs--
	if b.refs > 0 {
		return nil
	}
	if b.external {
		return nil
	}
	if b.ptr == 0 {
		return nil
	}
	if b.alloc == nil {
		panic("buffer: release with nil allocator")
	}
	b.alloc.Release(b.ptr)
	b.ptr = 0
	return nil
}

// CopyFrom copies min(b.Size, other.Size) bytes from other into b, resolving
// the transfer kind from the two device types. Bytes past the copied length
// in b are untouched. Unknown device types and a nil allocator are
// precondition violations and panic before any device-level call.
func (b *Buffer) CopyFrom(other *Buffer) error {
	if b.alloc == nil {
		panic("buffer: copy with nil allocator")
	}
	kind, err := device.TransferKindFor(other.dev, b.dev)
	if err != nil {
		panic(fmt.Sprintf("buffer: copy between %s and %s: %v", other.dev, b.dev, err))
	}
	n := min(b.size, other.size)
	if err := b.alloc.Memcpy(b.ptr, other.ptr, n, kind); err != nil {
		return fmt.Errorf("buffer: copy %d bytes (%s): %w", n, kind, err)
	}
	return nil
}

// Zero zeroes the buffer's memory through its allocator.
func (b *Buffer) Zero() error {
	if b.alloc == nil {
		panic("buffer: zero with nil allocator")
	}
	if err := b.alloc.MemsetZero(b.ptr, b.size); err != nil {
		return fmt.Errorf("buffer: zero %d bytes: %w", b.size, err)
	}
	return nil
}

// Ptr returns the buffer's device address, or 0 when unallocated or closed.
func (b *Buffer) Ptr() uintptr { return b.ptr }

// Size returns the buffer's byte size.
func (b *Buffer) Size() int64 { return b.size }

// Allocator returns the allocator the buffer is bound to.
func (b *Buffer) Allocator() alloc.Allocator { return b.alloc }

// Device returns the buffer's device type.
func (b *Buffer) Device() device.Type { return b.dev }

// SetDevice overrides the buffer's device type.
func (b *Buffer) SetDevice(t device.Type) { b.dev = t }

// External reports whether the buffer wraps memory it does not own.
func (b *Buffer) External() bool { return b.external }
