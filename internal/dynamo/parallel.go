package dynamo

import "sync"

// DefaultWorkers is the worker count used when a caller passes zero.
const DefaultWorkers = 4

// ParallelFor executes fn over contiguous chunks of [0, n) on up to workers
// goroutines. Chunks never overlap, so fn may write to its own index range of
// a shared slice without locking.
func ParallelFor(n, minChunk, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers == 1 {
		fn(0, n)
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
