// Package testutil provides call-recording doubles for the device backend and
// allocator surfaces, used by tests across the module.
package testutil

import (
	"errors"
	"fmt"

	"github.com/accelkit/devmem/device"
)

// ErrMallocFailed is returned by the recorder for injected malloc failures.
var ErrMallocFailed = errors.New("testutil: injected malloc failure")

// Call records one backend invocation.
type Call struct {
	Op   string // "malloc", "free", "memcpy", "memset_zero"
	Ptr  uintptr
	Dst  uintptr
	Src  uintptr
	N    int64
	Kind device.TransferKind
}

// Recorder is a device.Backend double. It hands out deterministic fake
// addresses, records every call, and supports two failure-injection modes:
// an explicit fail count and a live-byte budget.
type Recorder struct {
	Calls []Call

	// FailNextMalloc makes the next N Malloc calls fail unconditionally.
	FailNextMalloc int

	// Budget caps total live bytes when >= 0; Malloc fails once exceeding it.
	// The default of -1 disables the cap.
	Budget int64

	next uintptr
	live map[uintptr]int64
	used int64
}

// NewRecorder returns a recorder with addresses starting at 0x1000 and no
// byte budget.
func NewRecorder() *Recorder {
	return &Recorder{
		Budget: -1,
		next:   0x1000,
		live:   make(map[uintptr]int64),
	}
}

// Malloc hands out the next fake address, page-spaced so ranges never overlap.
func (r *Recorder) Malloc(n int64) (uintptr, error) {
	r.Calls = append(r.Calls, Call{Op: "malloc", N: n})
	if r.FailNextMalloc > 0 {
		r.FailNextMalloc--
		return 0, ErrMallocFailed
	}
	if r.Budget >= 0 && r.used+n > r.Budget {
		return 0, fmt.Errorf("%w: budget %d, live %d, want %d", ErrMallocFailed, r.Budget, r.used, n)
	}
	p := r.next
	r.next += uintptr((n + 4095) &^ 4095)
	r.live[p] = n
	r.used += n
	return p, nil
}

// Free releases a fake address. Addresses the recorder never handed out (or
// already freed) are rejected, mirroring a real driver's invalid-free error.
func (r *Recorder) Free(p uintptr) error {
	r.Calls = append(r.Calls, Call{Op: "free", Ptr: p})
	n, ok := r.live[p]
	if !ok {
		return fmt.Errorf("testutil: free of unknown address %#x", p)
	}
	delete(r.live, p)
	r.used -= n
	return nil
}

// Memcpy records the copy.
func (r *Recorder) Memcpy(dst, src uintptr, n int64, kind device.TransferKind) error {
	r.Calls = append(r.Calls, Call{Op: "memcpy", Dst: dst, Src: src, N: n, Kind: kind})
	return nil
}

// MemsetZero records the zeroing.
func (r *Recorder) MemsetZero(p uintptr, n int64) error {
	r.Calls = append(r.Calls, Call{Op: "memset_zero", Ptr: p, N: n})
	return nil
}

// CallsOf returns the recorded calls with the given op.
func (r *Recorder) CallsOf(op string) []Call {
	var out []Call
	for _, c := range r.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// MallocCount returns the number of Malloc calls, including failed ones.
func (r *Recorder) MallocCount() int { return len(r.CallsOf("malloc")) }

// FreeCount returns the number of Free calls.
func (r *Recorder) FreeCount() int { return len(r.CallsOf("free")) }

// LiveBytes returns the total bytes currently allocated through the recorder.
func (r *Recorder) LiveBytes() int64 { return r.used }

var _ device.Backend = (*Recorder)(nil)
