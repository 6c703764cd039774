package alloc

import "errors"

var (
	// ErrOutOfMemory indicates the backend could not satisfy an allocation
	// even after a reclamation pass and one retry.
	ErrOutOfMemory = errors.New("alloc: out of device memory")

	// ErrBadSize indicates a non-positive allocation size.
	ErrBadSize = errors.New("alloc: size must be positive")
)
