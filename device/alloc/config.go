package alloc

// Config defines the pool's size-class strategy.
type Config struct {
	// Name for this configuration (for benchmarking).
	Name string

	// SmallBlockThreshold is the boundary between the small and large size
	// classes: requests below it are small, at or above it large.
	SmallBlockThreshold int64

	// TrimThreshold is the number of idle small-block bytes above which a
	// Trim is considered worthwhile (see Pool.ShouldTrim). It does not
	// trigger trimming on its own; trimming is always explicit.
	TrimThreshold int64
}

// Predefined configurations.
var (
	// ConfigBalanced suits mixed tensor workloads: 1MiB class boundary,
	// trim once 64MiB of small blocks sit idle.
	ConfigBalanced = Config{
		Name:                "Balanced",
		SmallBlockThreshold: 1 << 20,
		TrimThreshold:       64 << 20,
	}

	// ConfigCompact keeps the idle footprint tight at the cost of more
	// backend traffic. Useful on memory-constrained devices.
	ConfigCompact = Config{
		Name:                "Compact",
		SmallBlockThreshold: 256 << 10,
		TrimThreshold:       8 << 20,
	}

	// DefaultConfig is used when no config is supplied.
	DefaultConfig = ConfigBalanced
)
