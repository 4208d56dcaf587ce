// Package executor implements the executor family of spec.md §4.5: inline,
// work-stealing multi-threaded, and blocking-offload, all built on the
// task and reactor packages. Inline and work-stealing both implement
// reactor.Executor so a Reactor can hand either one a ready batch without
// knowing which kind it is.
package executor

import "github.com/LEAVING-7/io/task"

// detachTracker is the minimal surface SpawnDetach needs from a concrete
// executor: a way to count outstanding detached spawns and a way to
// enqueue the spawned task's root continuation. It is unexported because
// Go methods cannot themselves be generic — SpawnDetach is a free
// function parameterized over the task's result type T instead, per
// spec.md §9's note that the Reactor/executor boundary is a set of
// implementation choices, not a prescribed interface shape.
type detachTracker interface {
	spawnInc()
	spawnDec()
	enqueue(cont *task.Continuation)
}

// SpawnDetach runs body to completion without any awaiter, per spec.md
// §4.5/§4.6: e's spawn count is incremented before the task starts and
// decremented exactly once when it finishes, satisfying the "after-destroy
// callback fires exactly once" invariant without SpawnDetach's caller
// having to hold a reference to the task at all.
func SpawnDetach[T any](e detachTracker, body task.Body[T]) {
	e.spawnInc()
	t := task.New(body, func(T) { e.spawnDec() })
	e.enqueue(t.Root())
}
