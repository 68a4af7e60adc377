// Package resilience provides the concurrency limiter that bounds the
// extraction pool.
//
// A Bulkhead caps how many calls run at once. Execute runs on the caller's
// goroutine; Go hands the call to a new goroutine so the caller never waits:
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "extract", MaxConcurrent: 8, MaxWait: -1})
//	bh.Go(ctx, func() { decode(body) }, func(err error) { abort(err) })
package resilience
