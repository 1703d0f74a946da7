package concurrency

import (
	"context"
	"sync"
)

// ForEach runs fn(ctx, i) for i in [0, n) with at most limit goroutines in
// flight and blocks until every call has returned. A limit <= 0 means
// unbounded fan-out.
func ForEach(ctx context.Context, limit, n int, fn func(ctx context.Context, i int)) {
	if n <= 0 {
		return
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, i)
		}(i)
	}
	wg.Wait()
}
