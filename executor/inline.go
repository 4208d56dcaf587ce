package executor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LEAVING-7/io/reactor"
	"github.com/LEAVING-7/io/task"
)

// blockPollTimeout bounds each react turn Block/BlockValue drives, so a
// completion delivered off-thread (a detached spawn's spawnDec, or a
// blocking-offload continuation resumed by a pool worker — see Await in
// blocking.go) is never missed by more than this long even if the reactor's
// Notify races with the driver about to enter poller.Wait.
const blockPollTimeout = 10 * time.Millisecond

// Inline is the single-threaded cooperative executor of spec.md §4.5:
// Execute enqueues, and resume normally happens only inside Block on the
// driver goroutine. The queue is still mutex-protected rather than a bare
// slice, because a task suspended on blocking-offload (executor.Await)
// can be resumed directly by a pool worker thread and go on to spawn
// further detached work before this driver notices — spec.md §4.5
// explicitly gives block_spawn no affinity guarantee, so Inline cannot
// assume queue mutation stays confined to the driver goroutine.
type Inline struct {
	r  *reactor.Reactor
	mu sync.Mutex

	queue    []*task.Continuation
	spawnCnt atomic.Int64
}

// NewInline constructs an Inline executor driving r's react turns.
func NewInline(r *reactor.Reactor) *Inline {
	return &Inline{r: r}
}

// Execute enqueues batch for the next drain inside Block. Per spec.md
// §4.5 this is the only thing Execute does on Inline — it never resumes.
func (e *Inline) Execute(batch []*task.Continuation) {
	e.mu.Lock()
	e.queue = append(e.queue, batch...)
	e.mu.Unlock()
}

func (e *Inline) spawnInc() { e.spawnCnt.Add(1) }

// spawnDec decrements the detached-spawn count and wakes a concurrently
// blocked react turn, mirroring WorkStealing.spawnDec: the decrementing
// goroutine may be a pool worker (a detached task's body can itself
// suspend on blocking-offload before finishing), so the driver waiting in
// Block cannot assume it will otherwise notice this count reaching zero.
func (e *Inline) spawnDec() {
	e.spawnCnt.Add(-1)
	_ = e.r.Notify()
}

func (e *Inline) enqueue(cont *task.Continuation) {
	e.mu.Lock()
	e.queue = append(e.queue, cont)
	e.mu.Unlock()
}

func (e *Inline) popAll() []*task.Continuation {
	e.mu.Lock()
	defer e.mu.Unlock()
	batch := e.queue
	e.queue = nil
	return batch
}

func (e *Inline) queueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Block runs body to completion, driving e's own reactor turns as needed,
// per spec.md §4.5: seed the root task, then loop — drain the queue to
// empty (resuming each continuation to its next suspension), and if the
// root hasn't produced a value yet, or the spawn count is nonzero, or the
// queue is nonempty again, perform one more reactor turn to top it up.
// Terminates only once none of those three conditions holds.
func (e *Inline) Block(body task.Body[struct{}]) {
	BlockValue(e, body)
}

// BlockValue is Block for a Body[T] that returns a value, since Inline's
// Block method itself cannot be generic (Go methods can't have their own
// type parameters) — see the doc comment on detachTracker for the same
// constraint applied to SpawnDetach.
func BlockValue[T any](e *Inline, body task.Body[T]) T {
	// resultCh, not a plain variable, carries the root's return value: a
	// task suspended on blocking-offload may finish on whichever pool
	// thread resumes it rather than this driver goroutine, so completion
	// needs a synchronizing handoff instead of a bare bool checked here.
	resultCh := make(chan T, 1)
	root := task.New(body, func(v T) { resultCh <- v })
	e.enqueue(root.Root())

	var (
		result T
		done   bool
	)
	for {
		for {
			batch := e.popAll()
			if len(batch) == 0 {
				break
			}
			for _, cont := range batch {
				cont.Resume()
			}
		}
		if !done {
			select {
			case result = <-resultCh:
				done = true
			default:
			}
		}
		if done && e.spawnCnt.Load() == 0 && e.queueLen() == 0 {
			return result
		}
		// Bounded, not React(nil, e): a blocking-offload completion (Await,
		// in blocking.go) resumes its continuation directly on a pool
		// worker goroutine rather than routing through e's queue, so an
		// unbounded poller.Wait here could park the driver in epoll_wait
		// forever even though Notify is also called on that completion
		// path — this timeout is the backstop if the two ever race.
		timeout := blockPollTimeout
		_ = e.r.React(&timeout, e)
	}
}
