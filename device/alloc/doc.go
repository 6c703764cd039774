// Package alloc implements the pooling device-memory allocator.
//
// # Overview
//
// A Pool fronts one device's raw allocation capability (device.Backend) and
// amortizes allocation churn: released blocks are kept and handed back out to
// later requests of the same size class instead of round-tripping through the
// backend. The backend's Malloc is invoked only when no idle block fits, and
// its Free only when the pool is trimmed, when an out-of-memory reclamation
// pass runs, or when an untracked address is released.
//
// # Size Classes
//
// Requests below Config.SmallBlockThreshold are "small", the rest "large".
// The two classes use different reuse-selection policies:
//
//   - small: first-fit over an insertion-ordered list. Lookup speed wins;
//     the fragmentation cost of an oversized small block is low.
//   - large: best-fit via a min-heap keyed on block size. The idle block with
//     the smallest size >= the request is chosen, minimizing the leftover
//     waste that matters for large blocks.
//
// # Reclamation
//
// Releasing a small block only marks it idle and feeds an idle-byte counter;
// no memory returns to the backend. When a backend Malloc fails, the pool runs
// one reclamation pass that physically frees idle blocks, oldest-idled first,
// and retries once before reporting ErrOutOfMemory. Trim runs the same pass
// on demand.
//
// # Thread Safety
//
// Pool is not goroutine-safe. Callers issuing Allocate/Release against the
// same device must serialize externally, e.g. one mutex per device.
package alloc
