package buffer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelkit/devmem/device"
	"github.com/accelkit/devmem/device/alloc"
	"github.com/accelkit/devmem/internal/hostmem"
	"github.com/accelkit/devmem/internal/testutil"
)

var _ alloc.Allocator = (*testutil.SpyAllocator)(nil)

// TestClose_ReleasesExactlyOnce verifies the destruction contract: one owning
// buffer, one release, address zeroed afterwards.
func TestClose_ReleasesExactlyOnce(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)

	b, err := NewAllocated(128, spy)
	require.NoError(t, err)
	ptr := b.Ptr()
	require.NotZero(t, ptr)

	require.NoError(t, b.Close())
	require.Len(t, spy.Released, 1)
	assert.Equal(t, ptr, spy.Released[0])
	assert.Zero(t, b.Ptr(), "address must be zeroed after release")
}

// TestClose_ExternalNeverReleases verifies an external buffer performs no
// deallocation whatsoever on destruction.
func TestClose_ExternalNeverReleases(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)

	b := NewExternal(spy, 0xbeef00, 64, device.CUDA)
	require.True(t, b.External())
	require.NoError(t, b.Close())

	assert.Empty(t, spy.Released, "external buffer must not call the release path")
}

// TestRetain_SingleReleaseUnderSharedOwnership verifies two co-owning handles
// produce exactly one release in total, fired by the last Close.
func TestRetain_SingleReleaseUnderSharedOwnership(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)

	b, err := NewAllocated(256, spy)
	require.NoError(t, err)
	co := b.Retain()

	require.NoError(t, b.Close())
	assert.Empty(t, spy.Released, "release must wait for the last co-owner")

	require.NoError(t, co.Close())
	assert.Len(t, spy.Released, 1)
}

// TestCopyFrom_TransferKinds checks each (source, destination) device pairing
// reaches the allocator's memcpy with exactly the corresponding kind.
func TestCopyFrom_TransferKinds(t *testing.T) {
	tests := []struct {
		name string
		src  device.Type
		dst  device.Type
		want device.TransferKind
	}{
		{name: "host to host", src: device.CPU, dst: device.CPU, want: device.HostToHost},
		{name: "host to device", src: device.CPU, dst: device.CUDA, want: device.HostToDevice},
		{name: "device to host", src: device.CUDA, dst: device.CPU, want: device.DeviceToHost},
		{name: "device to device", src: device.CUDA, dst: device.CUDA, want: device.DeviceToDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := testutil.NewSpyAllocator(tt.dst)

			dst, err := NewAllocated(64, spy)
			require.NoError(t, err)
			dst.SetDevice(tt.dst)

			src, err := NewAllocated(64, spy)
			require.NoError(t, err)
			src.SetDevice(tt.src)

			require.NoError(t, dst.CopyFrom(src))
			require.Len(t, spy.Copies, 1)
			assert.Equal(t, tt.want, spy.Copies[0].Kind)
			assert.Equal(t, dst.Ptr(), spy.Copies[0].Dst)
			assert.Equal(t, src.Ptr(), spy.Copies[0].Src)
		})
	}
}

// TestCopyFrom_TruncatesToSmallerSide verifies the transfer length is the
// minimum of the two sizes.
func TestCopyFrom_TruncatesToSmallerSide(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)

	dst, err := NewAllocated(20, spy)
	require.NoError(t, err)
	src, err := NewAllocated(10, spy)
	require.NoError(t, err)

	require.NoError(t, dst.CopyFrom(src))
	require.Len(t, spy.Copies, 1)
	assert.Equal(t, int64(10), spy.Copies[0].N)

	// Other direction: destination smaller than source.
	spy.Copies = nil
	require.NoError(t, src.CopyFrom(dst))
	require.Len(t, spy.Copies, 1)
	assert.Equal(t, int64(10), spy.Copies[0].N)
}

// TestCopyFrom_RealMemoryTruncation runs the truncation property on real host
// memory: only the first len(src) bytes of the destination change.
func TestCopyFrom_RealMemoryTruncation(t *testing.T) {
	p := alloc.New(hostmem.New(), device.CPU, nil)

	dst, err := NewAllocated(20, p)
	require.NoError(t, err)
	defer dst.Close()
	src, err := NewAllocated(10, p)
	require.NoError(t, err)
	defer src.Close()

	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst.Ptr())), 20)
	srcBytes := unsafe.Slice((*byte)(unsafe.Pointer(src.Ptr())), 10)
	for i := range dstBytes {
		dstBytes[i] = 0xEE
	}
	for i := range srcBytes {
		srcBytes[i] = byte(i + 1)
	}

	require.NoError(t, dst.CopyFrom(src))

	for i := 0; i < 10; i++ {
		assert.Equal(t, byte(i+1), dstBytes[i], "byte %d should come from source", i)
	}
	for i := 10; i < 20; i++ {
		assert.Equal(t, byte(0xEE), dstBytes[i], "byte %d must remain untouched", i)
	}
}

// TestZero verifies MemsetZero passes through and clears real memory.
func TestZero(t *testing.T) {
	p := alloc.New(hostmem.New(), device.CPU, nil)

	b, err := NewAllocated(16, p)
	require.NoError(t, err)
	defer b.Close()

	bytes := unsafe.Slice((*byte)(unsafe.Pointer(b.Ptr())), 16)
	for i := range bytes {
		bytes[i] = 0xFF
	}

	require.NoError(t, b.Zero())
	for i, v := range bytes {
		assert.Zero(t, v, "byte %d should be zeroed", i)
	}
}

// TestCopyFrom_UnknownDevicePanics verifies the precondition: an unknown
// device type on either side aborts before any device-level call.
func TestCopyFrom_UnknownDevicePanics(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)

	dst, err := NewAllocated(32, spy)
	require.NoError(t, err)
	src, err := NewAllocated(32, spy)
	require.NoError(t, err)

	src.SetDevice(device.Unknown)
	assert.Panics(t, func() { _ = dst.CopyFrom(src) })
	assert.Empty(t, spy.Copies, "no memcpy may be issued past a failed dispatch")

	src.SetDevice(device.CUDA)
	dst.SetDevice(device.Unknown)
	assert.Panics(t, func() { _ = dst.CopyFrom(src) })
	assert.Empty(t, spy.Copies)
}

func TestCopyFrom_NilAllocatorPanics(t *testing.T) {
	src := NewExternal(nil, 0x1000, 32, device.CPU)
	dst := NewExternal(nil, 0x2000, 32, device.CPU)
	assert.Panics(t, func() { _ = dst.CopyFrom(src) })
}

// TestLifecyclePanics covers the fatal misuse cases around Allocate and Close.
func TestLifecyclePanics(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)

	t.Run("double allocate", func(t *testing.T) {
		b, err := NewAllocated(8, spy)
		require.NoError(t, err)
		assert.Panics(t, func() { _ = b.Allocate() })
	})

	t.Run("allocate on external", func(t *testing.T) {
		b := NewExternal(spy, 0x1000, 8, device.CUDA)
		assert.Panics(t, func() { _ = b.Allocate() })
	})

	t.Run("close past zero refs", func(t *testing.T) {
		b, err := NewAllocated(8, spy)
		require.NoError(t, err)
		require.NoError(t, b.Close())
		assert.Panics(t, func() { _ = b.Close() })
	})

	t.Run("retain after close", func(t *testing.T) {
		b, err := NewAllocated(8, spy)
		require.NoError(t, err)
		require.NoError(t, b.Close())
		assert.Panics(t, func() { b.Retain() })
	})
}

// TestClose_UnallocatedOwningBuffer verifies closing a never-allocated owning
// buffer is a quiet no-op on the allocator.
func TestClose_UnallocatedOwningBuffer(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)
	b := New(64, spy)
	require.NoError(t, b.Close())
	assert.Empty(t, spy.Released)
}

func TestAccessors(t *testing.T) {
	spy := testutil.NewSpyAllocator(device.CUDA)
	b := New(48, spy)

	assert.Equal(t, int64(48), b.Size())
	assert.Equal(t, device.CUDA, b.Device(), "device defaults to the allocator's device")
	assert.False(t, b.External())
	assert.Equal(t, alloc.Allocator(spy), b.Allocator())

	b.SetDevice(device.CPU)
	assert.Equal(t, device.CPU, b.Device())
}
