// Package parallel provides deterministic work splitting for batch compute.
//
// Work is divided into contiguous index ranges assigned statically to
// workers. Static splitting keeps the assignment independent of scheduling,
// so any code that writes only inside its own range produces bit-identical
// results for every worker count.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach calls fn over [0, n) split into at most workers contiguous ranges,
// one goroutine per range. fn receives a half-open range [lo, hi) and must
// not touch indices outside it. If workers <= 0, GOMAXPROCS is used.
// ForEach returns after every range has been processed.
func ForEach(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		lo := lo
		hi := min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	// Worker funcs never return an error; Wait is used only as a barrier.
	_ = g.Wait()
}
