package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/accelkit/devmem/device"
	"github.com/accelkit/devmem/device/buffer"
	"github.com/accelkit/devmem/device/registry"
)

var (
	runOps       int
	runSeed      int64
	runMaxSmall  int64
	runMaxLarge  int64
	runLargePct  int
	runTrimEvery int
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runOps, "ops", 100000, "Number of allocate/release operations")
	cmd.Flags().Int64Var(&runSeed, "seed", 1, "PRNG seed")
	cmd.Flags().Int64Var(&runMaxSmall, "max-small", 64<<10, "Max small request size in bytes")
	cmd.Flags().Int64Var(&runMaxLarge, "max-large", 8<<20, "Max large request size in bytes")
	cmd.Flags().IntVar(&runLargePct, "large-pct", 10, "Percentage of requests in the large class")
	cmd.Flags().IntVar(&runTrimEvery, "trim-every", 0, "Trim the pool every N operations (0 = never)")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run an allocate/release churn workload",
		Long: `The run command allocates and releases buffers of mixed sizes against
the host-memory pool and reports pool statistics.

Example:
  devmemstress run --ops 500000 --large-pct 25
  devmemstress run --trim-every 10000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChurn()
		},
	}
}

// report is the JSON-friendly result of a churn run.
type report struct {
	Ops            int           `json:"ops"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	OpsPerSec      float64       `json:"ops_per_sec"`
	PoolHits       int           `json:"pool_hits"`
	BackendMallocs int           `json:"backend_mallocs"`
	BackendFrees   int           `json:"backend_frees"`
	TrimPasses     int           `json:"trim_passes"`
	BytesInUse     int64         `json:"bytes_in_use"`
	BytesIdle      int64         `json:"bytes_idle"`
}

func runChurn() error {
	pool, err := registry.Default().Get(device.CPU)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(runSeed))
	var live []*buffer.Buffer

	start := time.Now()
	for i := 0; i < runOps; i++ {
		// Bias toward allocation until a working set builds up, then churn.
		if len(live) > 0 && rng.Intn(2) == 0 {
			j := rng.Intn(len(live))
			if err := live[j].Close(); err != nil {
				return err
			}
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			size := 1 + rng.Int63n(runMaxSmall)
			if rng.Intn(100) < runLargePct {
				size = runMaxSmall + rng.Int63n(runMaxLarge-runMaxSmall)
			}
			b, err := buffer.NewAllocated(size, pool)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			live = append(live, b)
		}

		if runTrimEvery > 0 && i > 0 && i%runTrimEvery == 0 {
			freed := pool.Trim()
			printVerbose("op %d: trimmed %d bytes\n", i, freed)
		}
	}
	for _, b := range live {
		if err := b.Close(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	st := pool.Stats()
	r := report{
		Ops:            runOps,
		Elapsed:        elapsed,
		OpsPerSec:      float64(runOps) / elapsed.Seconds(),
		PoolHits:       st.PoolHits,
		BackendMallocs: st.BackendMallocs,
		BackendFrees:   st.BackendFrees,
		TrimPasses:     st.TrimPasses,
		BytesInUse:     st.BytesInUse,
		BytesIdle:      st.BytesIdle,
	}
	if jsonOut {
		return printJSON(r)
	}

	fmt.Printf("ops:             %d in %s (%.0f ops/s)\n", r.Ops, r.Elapsed, r.OpsPerSec)
	fmt.Printf("pool hits:       %d (%.1f%% of allocations)\n",
		r.PoolHits, 100*float64(r.PoolHits)/float64(st.AllocCalls))
	fmt.Printf("backend mallocs: %d\n", r.BackendMallocs)
	fmt.Printf("backend frees:   %d\n", r.BackendFrees)
	fmt.Printf("trim passes:     %d\n", r.TrimPasses)
	fmt.Printf("bytes in use:    %d\n", r.BytesInUse)
	fmt.Printf("bytes idle:      %d\n", r.BytesIdle)
	return nil
}
