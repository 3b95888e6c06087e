// Package parallel provides worker-chunked loop helpers for the CPU backend.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1024,
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is
// too small to amortize goroutine overhead.
//
// Samples in a batch are independent of each other, so the CPU backend
// uses this across the batch dimension; f must not touch shared state.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

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

// ForRows runs f(row) for each row of a [rows, cols] matrix, chunking by
// whole rows. Used by matmul where each output row is independent.
func ForRows(rows, cols int, f func(row int), cfg Config) {
	// Scale the chunk threshold by row width so small matrices stay
	// sequential.
	rowCfg := cfg
	if cols > 0 && cfg.MinChunkSize > 0 {
		rowCfg.MinChunkSize = max(cfg.MinChunkSize/cols, 1)
	}
	For(rows, f, rowCfg)
}
