// Package batch implements the bounded-concurrency batch executor and the
// fault-rate retry controller shared by the enrichment stages.
package batch

import (
	"context"
	"sync"
)

// Progress receives an observation after every finished chunk: how many items
// have a result so far out of the total. Nil callbacks are ignored.
type Progress func(done, total int)

// Execute runs worker over items in consecutive chunks of at most width
// items. All workers in a chunk run concurrently; the next chunk starts only
// after the whole chunk finished, so peak concurrency is exactly width.
//
// The result slice always has len(items) entries in input order. Workers must
// map their own failures to result values; Execute never lets one item abort
// the batch. When ctx is canceled mid-chunk, results already completed inside
// the chunk are kept, the in-flight remainder is left as the zero value, and
// Execute returns immediately without starting further chunks.
func Execute[T any](ctx context.Context, items []string, worker func(string) T, width int, onProgress Progress) []T {
	if width < 1 {
		width = 1
	}
	total := len(items)
	results := make([]T, total)

	for start := 0; start < total; start += width {
		end := start + width
		if end > total {
			end = total
		}
		if ctx.Err() != nil {
			return results
		}

		state := &chunkState[T]{
			out: make([]T, end-start),
			ok:  make([]bool, end-start),
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v := worker(items[i])
				state.store(i-start, v)
			}(i)
		}

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()

		select {
		case <-finished:
			state.drain(results[start:end])
		case <-ctx.Done():
			// Keep whatever completed before the interrupt; the rest of the
			// chunk and all later positions stay zero. In-flight workers run
			// to completion in the background and their results are dropped.
			state.drain(results[start:end])
			return results
		}

		if onProgress != nil {
			onProgress(end, total)
		}
	}
	return results
}

// chunkState collects worker results behind a mutex so a canceled Execute can
// safely read completed slots while stragglers are still writing.
type chunkState[T any] struct {
	mu  sync.Mutex
	out []T
	ok  []bool
}

func (s *chunkState[T]) store(i int, v T) {
	s.mu.Lock()
	s.out[i] = v
	s.ok[i] = true
	s.mu.Unlock()
}

func (s *chunkState[T]) drain(dst []T) {
	s.mu.Lock()
	for i, done := range s.ok {
		if done {
			dst[i] = s.out[i]
		}
	}
	s.mu.Unlock()
}
