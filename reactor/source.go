package reactor

import (
	"sync"

	"github.com/LEAVING-7/io/task"
)

// Direction is one of a Source's two wait slots, holding at most one parked
// continuation, per spec.md §3/§4.2.
type Direction struct {
	cont *task.Continuation
}

// parked reports whether the direction currently holds a continuation.
func (d *Direction) parked() bool {
	return d.cont != nil
}

// Source is a registered I/O object: an fd, its stable Slab key, and a
// two-slot state guarded by its own mutex, per spec.md §3. The Reactor is
// the sole owner; other components hold only the key.
type Source struct {
	mu    sync.Mutex
	fd    int
	key   int
	read  Direction
	write Direction
}

// setReadable parks cont in the read Direction iff it is currently empty,
// per the "Parking contract" in spec.md §4.2.
func (s *Source) setReadable(cont *task.Continuation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.read.parked() {
		return false
	}
	s.read.cont = cont
	return true
}

// setWritable parks cont in the write Direction iff it is currently empty.
func (s *Source) setWritable(cont *task.Continuation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.write.parked() {
		return false
	}
	s.write.cont = cont
	return true
}

// takeReadable atomically clears and returns the read Direction's
// continuation, or nil if empty — the reactor's consumption primitive.
func (s *Source) takeReadable() *task.Continuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.read.cont
	s.read.cont = nil
	return c
}

// takeWritable atomically clears and returns the write Direction's
// continuation, or nil if empty.
func (s *Source) takeWritable() *task.Continuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.write.cont
	s.write.cont = nil
	return c
}

// interest reports the {readable, writable} mask the Poller should be
// armed with, derived from the current Direction occupancy — the
// invariant checked by the "interest mask" testable property in spec.md §8.
func (s *Source) interest() (readable, writable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read.parked(), s.write.parked()
}

// Key returns the Source's stable Slab key.
func (s *Source) Key() int { return s.key }

// Fd returns the Source's underlying file descriptor.
func (s *Source) Fd() int { return s.fd }
