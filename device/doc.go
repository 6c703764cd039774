// Package device defines the device model shared by the rest of the module:
// device type enumeration, memory transfer kinds, the (source, destination)
// transfer dispatch table, and the Backend capability that concrete device
// runtimes implement.
//
// # Device Types
//
// A Type identifies the kind of device a memory address lives on. CPU is host
// memory; CUDA is discrete accelerator memory. Unknown is the zero value and
// is deliberately invalid for any transfer: copies must not be issued against
// a buffer whose placement has not been established.
//
// # Transfer Dispatch
//
// TransferKindFor resolves a (src, dst) device pair to exactly one of the four
// TransferKind values. All direction logic lives in this one table so it can
// be tested exhaustively; callers pass the resolved kind straight through to
// Backend.Memcpy.
//
// # Backends
//
// Backend is the opaque allocation/deallocation/copy capability the pooling
// allocator calls into. The module ships a host backend (internal/hostmem)
// and a recording backend for tests (internal/testutil); accelerator-runtime
// backends are injected by the embedding application.
//
// # Related Packages
//
//   - github.com/accelkit/devmem/device/alloc: pooling allocator over a Backend
//   - github.com/accelkit/devmem/device/buffer: ownership handles
//   - github.com/accelkit/devmem/device/registry: per-device allocator factory
package device
