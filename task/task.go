package task

// Task is a computation producing a value of type T, represented externally
// by its root Continuation: resuming the root starts the body running for
// the first time, exactly as the original coroutine-based design creates a
// coroutine suspended at its initial suspend point rather than running it
// immediately.
type Task[T any] struct {
	root *Continuation
}

// Body is a Task's computation. It receives a *Yield to suspend at
// awaitable points (reactor.Readable, reactor.Writable, reactor.Sleep,
// executor blocking-offload) and returns the task's result.
type Body[T any] func(y *Yield) T

// New builds a Task from body. onDone, if non-nil, is invoked exactly once
// with the task's return value when body returns — the after-destroy
// callback hook in spec.md §4.6, used by executors to observe completion
// (decrementing a spawn count, fulfilling a block() result) without any
// party holding a reference to the task's continuation after it finishes.
//
// The returned Task's root Continuation has not been resumed: nothing in
// body runs until the caller (normally an executor) calls Root().Resume().
func New[T any](body Body[T], onDone func(T)) *Task[T] {
	root := newContinuation()
	go func() {
		<-root.resume
		y := &Yield{cur: root}
		v := body(y)
		if onDone != nil {
			onDone(v)
		}
		close(y.cur.parked)
	}()
	return &Task[T]{root: root}
}

// Root returns the task's current root Continuation — the handle an
// executor resumes to run the task for the first time.
func (t *Task[T]) Root() *Continuation {
	return t.root
}

// Spawn is New without an after-destroy callback, for fire-and-forget use
// where nothing needs to observe the result (T is usually struct{}).
func Spawn[T any](body Body[T]) *Task[T] {
	return New(body, nil)
}
