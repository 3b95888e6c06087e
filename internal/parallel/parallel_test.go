package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForSequentialFallback(t *testing.T) {
	cfg := Config{Enabled: false}

	visited := make([]bool, 100)
	For(100, func(i int) { visited[i] = true }, cfg)

	for i, v := range visited {
		if !v {
			t.Errorf("index %d not visited", i)
		}
	}
}

func TestForParallelCoversAllIndices(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	const n = 10000
	var count int64
	visited := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&visited[i], 1)
		atomic.AddInt64(&count, 1)
	}, cfg)

	if count != n {
		t.Errorf("f called %d times, want %d", count, n)
	}
	for i, v := range visited {
		if v != 1 {
			t.Errorf("index %d visited %d times", i, v)
		}
	}
}

func TestForSmallNUsesSequential(t *testing.T) {
	cfg := DefaultConfig()

	// Below MinChunkSize; must still visit everything.
	visited := make([]bool, 10)
	For(10, func(i int) { visited[i] = true }, cfg)
	for i, v := range visited {
		if !v {
			t.Errorf("index %d not visited", i)
		}
	}
}

func TestForZeroIterations(t *testing.T) {
	called := false
	For(0, func(i int) { called = true }, DefaultConfig())
	if called {
		t.Error("f called for n=0")
	}
}

func TestForRows(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1}

	const rows = 64
	visited := make([]int32, rows)
	ForRows(rows, 128, func(r int) {
		atomic.AddInt32(&visited[r], 1)
	}, cfg)

	for r, v := range visited {
		if v != 1 {
			t.Errorf("row %d visited %d times", r, v)
		}
	}
}
