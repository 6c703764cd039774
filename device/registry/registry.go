// Package registry provides the per-device allocator factory: one shared pool
// per device kind, built lazily on first request.
//
// A Registry is an explicit, injectable object rather than an implicit global,
// so tests substitute their own backends freely. Default returns the
// process-wide registry wired with the host backend for device.CPU.
package registry

import (
	"errors"
	"sync"

	"github.com/accelkit/devmem/device"
	"github.com/accelkit/devmem/device/alloc"
	"github.com/accelkit/devmem/internal/hostmem"
)

// ErrNoBackend indicates no backend is registered for the requested device kind.
var ErrNoBackend = errors.New("registry: no backend registered for device")

// Registry lazily constructs one shared alloc.Pool per device kind. Pools are
// never torn down; their lifetime is process-scoped. Get is goroutine-safe;
// the pools it returns are not (see the alloc package documentation).
type Registry struct {
	mu       sync.Mutex
	backends map[device.Type]device.Backend
	cfg      alloc.Config
	pools    map[device.Type]*alloc.Pool
}

// Option configures a Registry.
type Option func(*Registry)

// WithBackend registers the backend serving a device kind.
func WithBackend(t device.Type, b device.Backend) Option {
	return func(r *Registry) {
		r.backends[t] = b
	}
}

// WithConfig sets the pool configuration applied to every pool the registry
// constructs.
func WithConfig(cfg alloc.Config) Option {
	return func(r *Registry) {
		r.cfg = cfg
	}
}

// New returns a registry with the given options applied.
func New(opts ...Option) *Registry {
	r := &Registry{
		backends: make(map[device.Type]device.Backend),
		cfg:      alloc.DefaultConfig,
		pools:    make(map[device.Type]*alloc.Pool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the shared pool for a device kind, constructing it on first
// request. Subsequent calls return the same instance.
func (r *Registry) Get(t device.Type) (*alloc.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[t]; ok {
		return p, nil
	}
	backend, ok := r.backends[t]
	if !ok {
		return nil, ErrNoBackend
	}
	p := alloc.New(backend, t, &r.cfg)
	r.pools[t] = p
	return p, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, wired with the host memory
// backend for device.CPU. Accelerator backends belong to the embedding
// application; register them on a registry of your own.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New(WithBackend(device.CPU, hostmem.New()))
	})
	return defaultReg
}
