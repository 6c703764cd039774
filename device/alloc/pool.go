package alloc

import (
	"container/heap"
	"fmt"
	"os"

	"github.com/eapache/queue"

	"github.com/accelkit/devmem/device"
)

// Runtime debug flag for allocation logging - controlled by DEVMEM_LOG_ALLOC env var.
var logAlloc = os.Getenv("DEVMEM_LOG_ALLOC") != ""

// Allocator is the surface buffers and the registry consume.
//
// Implementations:
//   - Pool: the pooling allocator in this package
//   - testutil.SpyAllocator: call-recording double for ownership tests
type Allocator interface {
	// Allocate returns the address of a block of at least n bytes.
	Allocate(n int64) (uintptr, error)

	// Release returns the block at p to the pool. Releasing an address that
	// is already idle is a lifecycle bug and panics.
	Release(p uintptr)

	// Memcpy copies n bytes from src to dst in the given direction.
	Memcpy(dst, src uintptr, n int64, kind device.TransferKind) error

	// MemsetZero zeroes n bytes at p.
	MemsetZero(p uintptr, n int64) error

	// Device reports the device kind this allocator serves.
	Device() device.Type
}

// block is one backend allocation tracked by the pool.
// Never two live blocks describe overlapping address ranges on one device.
type block struct {
	ptr   uintptr
	size  int64
	busy  bool
	small bool

	// heapIndex is the block's position in the idle large-block heap, or -1
	// when the block is busy or small (for heap.Remove during reclamation).
	heapIndex int
}

// idleHeap is a min-heap of idle large blocks keyed on size.
// The smallest idle block sits at the root, so a root that fits the request
// is the best fit by definition.
type idleHeap []*block

func (h idleHeap) Len() int           { return len(h) }
func (h idleHeap) Less(i, j int) bool { return h[i].size < h[j].size }

func (h idleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *idleHeap) Push(x any) {
	b := x.(*block) //nolint:errcheck // heap.Interface contract guarantees type
	b.heapIndex = len(*h)
	*h = append(*h, b)
}

func (h *idleHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	b.heapIndex = -1
	*h = old[0 : n-1]
	return b
}

// Stats holds pool counters for tests and instrumentation.
type Stats struct {
	AllocCalls     int   // Total Allocate() calls
	ReleaseCalls   int   // Total Release() calls
	PoolHits       int   // Allocations satisfied without a backend Malloc
	BackendMallocs int   // Backend Malloc() calls
	BackendFrees   int   // Backend Free() calls
	UntrackedFrees int   // Releases of addresses no pool entry tracked
	TrimPasses     int   // Reclamation passes (explicit Trim + OOM retries)
	BytesInUse     int64 // Bytes in busy blocks
	BytesIdle      int64 // Bytes in idle blocks (both classes)
}

// Pool is the pooling allocator for a single device. Not goroutine-safe;
// see the package documentation.
type Pool struct {
	backend device.Backend
	dev     device.Type
	cfg     Config

	// Address-indexed block registry: every tracked block, busy or idle.
	byPtr map[uintptr]*block

	// Small class: all small blocks in insertion order (first-fit scan).
	small []*block

	// Large class: idle large blocks only, min-heap on size (best-fit).
	large idleHeap

	// Idle small-block bytes, the fragmentation signal behind ShouldTrim.
	idleSmallBytes int64

	// FIFO of recently idled block addresses; reclamation frees oldest first.
	idleQ *queue.Queue

	stats Stats
}

var _ Allocator = (*Pool)(nil)

// New creates a pool over the given backend for the given device kind.
// A nil config selects DefaultConfig.
func New(backend device.Backend, dev device.Type, cfg *Config) *Pool {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	return &Pool{
		backend: backend,
		dev:     dev,
		cfg:     *cfg,
		byPtr:   make(map[uintptr]*block),
		idleQ:   queue.New(),
	}
}

// Device reports the device kind this pool serves.
func (p *Pool) Device() device.Type {
	return p.dev
}

// Allocate returns the address of a block of at least n bytes, reusing an
// idle block when one fits and calling the backend otherwise. When the
// backend fails, one reclamation pass runs and the allocation is retried
// once before ErrOutOfMemory is reported.
func (p *Pool) Allocate(n int64) (uintptr, error) {
	p.stats.AllocCalls++
	if n <= 0 {
		return 0, ErrBadSize
	}

	if b := p.findIdle(n); b != nil {
		p.markBusy(b)
		p.stats.PoolHits++
		if logAlloc {
			fmt.Fprintf(os.Stderr, "[ALLOC] %s: reuse %d bytes (block %d) at %#x\n",
				p.dev, n, b.size, b.ptr)
		}
		return b.ptr, nil
	}

	ptr, err := p.backendMalloc(n)
	if err != nil {
		// One reclamation pass, then a single retry.
		freed := p.reclaim()
		if logAlloc {
			fmt.Fprintf(os.Stderr, "[ALLOC] %s: backend malloc(%d) failed, reclaimed %d bytes: %v\n",
				p.dev, n, freed, err)
		}
		ptr, err = p.backendMalloc(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %d bytes on %s: %v", ErrOutOfMemory, n, p.dev, err)
		}
	}

	b := &block{
		ptr:       ptr,
		size:      n,
		busy:      true,
		small:     n < p.cfg.SmallBlockThreshold,
		heapIndex: -1,
	}
	p.byPtr[ptr] = b
	if b.small {
		p.small = append(p.small, b)
	}
	p.stats.BytesInUse += n
	return ptr, nil
}

// Release returns the block at p to the pool. A tracked block is marked idle
// and kept for reuse. An untracked address is handed straight to the backend's
// Free; the backend rejecting it signals a lifecycle bug (double free,
// foreign pointer) and is fatal.
func (p *Pool) Release(ptr uintptr) {
	p.stats.ReleaseCalls++

	b, ok := p.byPtr[ptr]
	if !ok {
		p.stats.UntrackedFrees++
		if logAlloc {
			fmt.Fprintf(os.Stderr, "[ALLOC] %s: untracked release %#x, freeing directly\n", p.dev, ptr)
		}
		if err := p.backend.Free(ptr); err != nil {
			panic(fmt.Sprintf("alloc: release of invalid address %#x on %s: %v", ptr, p.dev, err))
		}
		return
	}
	if !b.busy {
		panic(fmt.Sprintf("alloc: double release of %#x on %s", ptr, p.dev))
	}

	b.busy = false
	p.stats.BytesInUse -= b.size
	p.stats.BytesIdle += b.size
	if b.small {
		p.idleSmallBytes += b.size
	} else {
		heap.Push(&p.large, b)
	}
	p.idleQ.Add(ptr)
}

// Memcpy copies n bytes from src to dst through the backend.
func (p *Pool) Memcpy(dst, src uintptr, n int64, kind device.TransferKind) error {
	return p.backend.Memcpy(dst, src, n, kind)
}

// MemsetZero zeroes n bytes at ptr through the backend.
func (p *Pool) MemsetZero(ptr uintptr, n int64) error {
	return p.backend.MemsetZero(ptr, n)
}

// Trim physically frees every idle block and returns the number of bytes
// handed back to the backend. Busy blocks are untouched.
func (p *Pool) Trim() int64 {
	return p.reclaim()
}

// ShouldTrim reports whether idle small-block bytes exceed the configured
// trim threshold.
func (p *Pool) ShouldTrim() bool {
	return p.idleSmallBytes >= p.cfg.TrimThreshold
}

// IdleSmallBytes returns the idle-byte counter fed by small-block releases.
func (p *Pool) IdleSmallBytes() int64 {
	return p.idleSmallBytes
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return p.stats
}

// findIdle locates an idle block that fits n, per the class policy.
func (p *Pool) findIdle(n int64) *block {
	if n < p.cfg.SmallBlockThreshold {
		// First-fit: first idle small block large enough, in insertion order.
		for _, b := range p.small {
			if !b.busy && b.size >= n {
				return b
			}
		}
		return nil
	}
	return p.findIdleLarge(n)
}

// findIdleLarge applies best-fit over the idle large-block heap.
//
// Fast path: the root is the smallest idle block; if it fits, no smaller
// fitting block can exist. Slow path: the root is too small, so scan the heap
// array for the smallest block >= n and remove it by index.
func (p *Pool) findIdleLarge(n int64) *block {
	if len(p.large) == 0 {
		return nil
	}
	if p.large[0].size >= n {
		return heap.Pop(&p.large).(*block) //nolint:errcheck // heap contains only *block
	}

	best := -1
	for i := 1; i < len(p.large); i++ {
		if p.large[i].size < n {
			continue
		}
		if best == -1 || p.large[i].size < p.large[best].size {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	return heap.Remove(&p.large, best).(*block) //nolint:errcheck // heap contains only *block
}

// markBusy transitions an idle block found by findIdle back to busy.
// Large blocks were already removed from the heap by the find step.
func (p *Pool) markBusy(b *block) {
	b.busy = true
	p.stats.BytesIdle -= b.size
	p.stats.BytesInUse += b.size
	if b.small {
		p.idleSmallBytes -= b.size
	}
}

// backendMalloc calls the backend and counts it.
func (p *Pool) backendMalloc(n int64) (uintptr, error) {
	p.stats.BackendMallocs++
	return p.backend.Malloc(n)
}

// reclaim drains the idle FIFO, physically freeing every block that is still
// idle, and returns the bytes freed. Entries whose block was reused since
// being queued (or already freed by an earlier entry) are skipped.
func (p *Pool) reclaim() int64 {
	p.stats.TrimPasses++

	var freed int64
	for p.idleQ.Length() > 0 {
		ptr := p.idleQ.Remove().(uintptr) //nolint:errcheck // queue contains only uintptr
		b, ok := p.byPtr[ptr]
		if !ok || b.busy {
			continue
		}
		p.dropBlock(b)
		freed += b.size
	}
	return freed
}

// dropBlock removes an idle block from every pool structure and frees it.
func (p *Pool) dropBlock(b *block) {
	if err := p.backend.Free(b.ptr); err != nil {
		panic(fmt.Sprintf("alloc: backend rejected free of tracked block %#x on %s: %v", b.ptr, p.dev, err))
	}
	p.stats.BackendFrees++
	p.stats.BytesIdle -= b.size

	delete(p.byPtr, b.ptr)
	if b.small {
		p.idleSmallBytes -= b.size
		for i, sb := range p.small {
			if sb == b {
				p.small = append(p.small[:i], p.small[i+1:]...)
				break
			}
		}
	} else if b.heapIndex >= 0 {
		heap.Remove(&p.large, b.heapIndex)
	}
}
