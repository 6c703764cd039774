package device

// Type identifies the kind of device a memory address belongs to.
type Type uint8

const (
	// Unknown is the zero value. Buffers with an Unknown device type cannot
	// participate in transfers.
	Unknown Type = iota

	// CPU is host memory.
	CPU

	// CUDA is discrete accelerator memory.
	CUDA
)

// String returns the device type name.
func (t Type) String() string {
	switch t {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	default:
		return "unknown"
	}
}

// IsHost reports whether addresses on this device live in host memory.
func (t Type) IsHost() bool {
	return t == CPU
}

// Backend is the raw allocation/deallocation/copy capability for one device
// kind. The pooling allocator is the only intended caller; it invokes Malloc
// and Free sparingly and routes every byte movement through Memcpy.
//
// Implementations are not required to be goroutine-safe; the allocator layers
// above already demand external serialization per device.
type Backend interface {
	// Malloc allocates n bytes of device memory and returns its address.
	Malloc(n int64) (uintptr, error)

	// Free releases an address previously returned by Malloc. Freeing an
	// address this backend never handed out must return an error.
	Free(p uintptr) error

	// Memcpy copies n bytes from src to dst in the direction given by kind.
	// The call is synchronous: it returns after device-side completion.
	Memcpy(dst, src uintptr, n int64, kind TransferKind) error

	// MemsetZero zeroes n bytes starting at p.
	MemsetZero(p uintptr, n int64) error
}
