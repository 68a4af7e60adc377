package transport

import "time"

// ConnEvent describes one exchange's hold on a pooled connection.
type ConnEvent struct {
	// ID identifies the exchange; lease and release share it.
	ID uint64
	// Route is scheme://host[:port] of the request.
	Route string
	// Reused is true when the connection came from the idle pool.
	Reused bool
	// IdleTime is how long a reused connection sat idle.
	IdleTime time.Duration
	// At is when the event happened.
	At time.Time
}

// ConnObserver receives connection lease and release events. Release comes
// once the response body is finished with, when the connection returns to
// the pool or is closed. Implementations must be safe for concurrent use and
// must not block.
type ConnObserver interface {
	ConnLeased(ev ConnEvent)
	ConnReleased(ev ConnEvent)
}
