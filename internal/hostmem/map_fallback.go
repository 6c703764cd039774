//go:build !unix

package hostmem

// mapBytes allocates n bytes from the Go heap. The backing slice stays
// reachable through Backend.regions until freed.
func mapBytes(n int) ([]byte, error) {
	return make([]byte, n), nil
}

// unmapBytes is a no-op: the slice becomes collectable once untracked.
func unmapBytes(_ []byte) error {
	return nil
}
