package match

import (
	"runtime"
	"sync"
)

// Below this many multiply-adds a score map is computed on the caller's
// goroutine.
const parallelMinWork = 1 << 18

// parallelRows splits [0,rows) into bands and runs fn on each, bounded by
// a semaphore of NumCPU. Bands write disjoint rows so no locking is needed.
// It returns once every band is done.
func parallelRows(rows, workPerRow int, fn func(y0, y1 int)) {
	workers := runtime.NumCPU()
	if workers <= 1 || rows < 2 || rows*workPerRow < parallelMinWork {
		fn(0, rows)
		return
	}
	band := (rows + workers*2 - 1) / (workers * 2)
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for y := 0; y < rows; y += band {
		wg.Add(1)
		sem <- struct{}{}
		go func(y0, y1 int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(y0, y1)
		}(y, min(y+band, rows))
	}
	wg.Wait()
}
