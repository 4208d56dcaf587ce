package reactor

import "time"

// Event reports one fd's readiness, keyed by the Source's Slab key rather
// than by fd — the Reactor never has to map an OS fd back to a Source.
type Event struct {
	Key      int
	Readable bool
	Writable bool
}

// Poller is the abstract contract over an OS readiness multiplexer
// (epoll/kqueue/IOCP/poll), per spec.md §4.1. Implementations live in the
// poller_<goos>.go files; the Reactor only ever talks to this interface.
type Poller interface {
	// Add registers fd for monitoring, associated with key. The initial
	// interest mask is empty — Mod must be called to arm a direction.
	Add(fd int, key int) error
	// Mod sets fd's interest mask to exactly {readable, writable}.
	Mod(fd int, key int, readable, writable bool) error
	// Del unregisters fd.
	Del(fd int) error
	// Wait blocks up to timeout (nil means indefinitely, 0 means return
	// immediately) and fills out with ready events, returning how many.
	// Returns (0, nil) on timeout. An interrupted wait is not an error and
	// is reported as (0, nil).
	Wait(out []Event, timeout *time.Duration) (int, error)
	// Notify wakes a concurrent Wait on another goroutine exactly once.
	Notify() error
	// Close releases the poller's OS resources.
	Close() error
}
