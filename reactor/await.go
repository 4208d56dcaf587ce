package reactor

import (
	"time"

	"github.com/LEAVING-7/io/task"
)

// Readable suspends the calling task until source's read Direction fires,
// per spec.md §6's reactor.readable(source). Parking a second
// continuation into an already-occupied Direction is a fatal condition
// (spec.md §7) that terminates the process via r.fatal, since it is a contract violation
// by the caller (concurrent awaits on one Source's same direction), not a
// recoverable runtime state.
func (r *Reactor) Readable(y *task.Yield, source *Source) {
	y.Suspend(func(next *task.Continuation) {
		ok, err := r.SetReadable(source, next)
		if !ok {
			r.fatal("set_readable: direction already occupied")
			return
		}
		if err != nil {
			r.fatal("update_io failed after set_readable")
		}
	})
}

// Writable is Readable for source's write Direction.
func (r *Reactor) Writable(y *task.Yield, source *Source) {
	y.Suspend(func(next *task.Continuation) {
		ok, err := r.SetWritable(source, next)
		if !ok {
			r.fatal("set_writable: direction already occupied")
			return
		}
		if err != nil {
			r.fatal("update_io failed after set_writable")
		}
	})
}

// Sleep suspends the calling task until d has elapsed, per spec.md §6's
// reactor.sleep(duration). The timer is inserted only once the
// continuation produced by Suspend is available, so the deadline is
// computed against the moment the task actually parks, not the moment
// Sleep was called.
func (r *Reactor) Sleep(y *task.Yield, d time.Duration) {
	y.Suspend(func(next *task.Continuation) {
		r.InsertTimer(time.Now().Add(d), next)
	})
}
