// Package poolmon watches how exchanges hold pooled HTTP connections.
//
// A Monitor is a transport.ConnObserver. It keeps per-route counters of
// leases, idle reuse and concurrency, and a background sweep reports every
// lease held longer than the stall threshold, once, to the log and to
// EngineMetrics. A stalled lease usually means a reader stopped consuming a
// body while backpressure keeps the connection parked.
//
// The monitor uses its own lock and never touches chunk channels, so a slow
// observer cannot delay a producer beyond the map update.
package poolmon
