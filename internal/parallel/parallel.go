// Package parallel fans row-wise layer math out over worker goroutines.
//
// Workers always receive disjoint index ranges, so callers may write to
// per-index outputs without locking.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	NumWorkers   int // Goroutines per call; <= 1 runs sequentially.
	MinChunkSize int // Minimum indices per goroutine.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{
		NumWorkers:   runtime.NumCPU(),
		MinChunkSize: 16,
	}
}

// ForDevices sizes the worker pool from a device list: one worker per
// listed device, capped at the CPU count. An empty list means one worker.
func ForDevices(devices []int) Config {
	workers := max(len(devices), 1)
	workers = min(workers, runtime.NumCPU())
	return Config{
		NumWorkers:   workers,
		MinChunkSize: 16,
	}
}

// Sequential never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1}
}

// For executes f(i) for i in [0, n).
// Falls back to sequential execution for a single worker or small n.
func For(n int, f func(i int), cfg Config) {
	if cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := range n {
			f(i)
		}
		return
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
