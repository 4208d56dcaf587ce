// Package task implements the suspendable-computation abstraction the
// reactor and executors schedule: a Continuation is "resume this to advance
// the task," and a Task[T] is a computation producing a T, expressed as a
// function of a *Yield that parks at each awaitable point.
//
// Go has no native stackless coroutines, so each Task body runs on its own
// goroutine for its entire lifetime. A Continuation is a one-shot rendezvous
// between that goroutine and whichever caller resumes it: Resume hands
// control to the parked goroutine and blocks until it either suspends again
// (registering a fresh Continuation) or the task body returns. Exactly one
// of the task's goroutine and the resumer's goroutine is ever actually
// running task code at a time, which is what lets the inline executor
// behave as a genuinely single-threaded cooperative scheduler even though
// the underlying mechanism is ordinary goroutines and channels.
package task

import "sync/atomic"

// Continuation is an opaque, non-copyable, resumable handle for a suspended
// task. It is owned exclusively by whoever currently holds it — a Source's
// Direction slot, a ready queue, or the stack resuming it — and must be
// resumed at most once.
type Continuation struct {
	resumed atomic.Bool
	resume  chan struct{}
	parked  chan struct{}
}

func newContinuation() *Continuation {
	return &Continuation{
		resume: make(chan struct{}),
		parked: make(chan struct{}),
	}
}

// Resume wakes the computation parked behind c and blocks until it either
// suspends again (at a new Continuation) or the task finishes. Calling
// Resume a second time on the same Continuation panics: a Continuation may
// be resumed exactly once, per the task/continuation invariant in spec.md.
func (c *Continuation) Resume() {
	if !c.resumed.CompareAndSwap(false, true) {
		panic("task: Continuation resumed twice")
	}
	c.resume <- struct{}{}
	<-c.parked
}

// Yield is passed to a Task's body and is the only way the body suspends.
type Yield struct {
	cur *Continuation
}

// Suspend registers a fresh Continuation (via register) for whatever the
// task is about to wait on, parks the calling goroutine, and returns only
// once that Continuation is resumed. register runs before the task parks,
// so it is safe to arm a poller or insert a timer entry inside it.
func (y *Yield) Suspend(register func(next *Continuation)) {
	next := newContinuation()
	register(next)
	close(y.cur.parked)
	y.cur = next
	<-next.resume
}
