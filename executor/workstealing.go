package executor

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LEAVING-7/io/reactor"
	"github.com/LEAVING-7/io/task"
	"github.com/rs/zerolog"
)

// deque is a per-worker double-ended queue: the owner pushes/pops LIFO
// from the tail (cache-friendly, cheap continuation reuse), while thieves
// steal FIFO from the head, per spec.md §4.5. A plain mutex-protected
// slice is used rather than a lock-free structure — the original
// ThreadPool/MutilThreadExecutor this is grounded on doesn't attempt
// per-worker deques at all (just one shared queue plus a condvar), so a
// lock-free deque here would be optimizing a dimension the source design
// never had; this executor's actual enrichment is the two-level
// local/global/steal topology itself, per spec.md §4.5's explicit
// requirement, not lock-freedom.
type deque struct {
	mu    sync.Mutex
	items []*task.Continuation
}

func (d *deque) pushBack(c *task.Continuation) {
	d.mu.Lock()
	d.items = append(d.items, c)
	d.mu.Unlock()
}

func (d *deque) popBack() (*task.Continuation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return nil, false
	}
	c := d.items[n-1]
	d.items = d.items[:n-1]
	return c, true
}

func (d *deque) stealFront() (*task.Continuation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	c := d.items[0]
	d.items = d.items[1:]
	return c, true
}

// WorkStealing is the multi-threaded executor of spec.md §4.5: N workers
// each with a local deque, a shared global overflow queue, and a random
// steal policy against sibling deques when a worker's own deque and the
// global queue are both empty.
type WorkStealing struct {
	log zerolog.Logger
	r   *reactor.Reactor

	workers []*deque
	global  struct {
		mu    sync.Mutex
		cond  *sync.Cond
		items []*task.Continuation
	}
	spawnCnt atomic.Int64
	stopping atomic.Bool
	stopped  sync.WaitGroup

	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewWorkStealing starts n worker goroutines driven by r, per spec.md
// §4.5. r is used for the caller's own driver turns inside Block and for
// the r.Notify call in spawnDec when a detached task finishes; workers
// never call React.
func NewWorkStealing(r *reactor.Reactor, n int, log zerolog.Logger) *WorkStealing {
	if n <= 0 {
		n = 1
	}
	e := &WorkStealing{
		r:       r,
		log:     log,
		workers: make([]*deque, n),
		rng:     rand.New(rand.NewSource(1)),
	}
	e.global.cond = sync.NewCond(&e.global.mu)
	for i := range e.workers {
		e.workers[i] = &deque{}
	}
	e.stopped.Add(n)
	for i := 0; i < n; i++ {
		go e.workerLoop(i)
	}
	return e
}

// Execute distributes batch across worker deques round-robin, per spec.md
// §4.5's "distributes continuations to the global queue (or round-robins
// into worker deques)" — this executor round-robins directly into worker
// deques to skip an extra global-queue hop for the common case of an
// externally-produced ready batch.
func (e *WorkStealing) Execute(batch []*task.Continuation) {
	for i, c := range batch {
		w := e.workers[i%len(e.workers)]
		w.pushBack(c)
	}
	e.global.mu.Lock()
	e.global.cond.Broadcast()
	e.global.mu.Unlock()
}

func (e *WorkStealing) spawnInc() { e.spawnCnt.Add(1) }
func (e *WorkStealing) spawnDec() {
	e.spawnCnt.Add(-1)
	_ = e.r.Notify()
}

// enqueue implements detachTracker by pushing to the global queue —
// SpawnDetach calls this from whatever goroutine spawned the task, which
// has no natural "owning worker" deque.
func (e *WorkStealing) enqueue(c *task.Continuation) {
	e.global.mu.Lock()
	e.global.items = append(e.global.items, c)
	e.global.cond.Broadcast()
	e.global.mu.Unlock()
}

func (e *WorkStealing) popGlobal() (*task.Continuation, bool) {
	e.global.mu.Lock()
	defer e.global.mu.Unlock()
	if len(e.global.items) == 0 {
		return nil, false
	}
	c := e.global.items[0]
	e.global.items = e.global.items[1:]
	return c, true
}

func (e *WorkStealing) randomVictim(exclude int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	if len(e.workers) == 1 {
		return exclude
	}
	for {
		i := e.rng.Intn(len(e.workers))
		if i != exclude {
			return i
		}
	}
}

// workerLoop implements spec.md §4.5: pop LIFO from own deque, fall back
// to FIFO on the global queue, then attempt to steal FIFO from one randomly
// chosen sibling's deque; when all three come up empty it parks on the
// global condvar for at most 50ms (if the global queue is still empty).
func (e *WorkStealing) workerLoop(id int) {
	defer e.stopped.Done()
	own := e.workers[id]
	for {
		if e.stopping.Load() {
			return
		}
		if c, ok := own.popBack(); ok {
			c.Resume()
			continue
		}
		if c, ok := e.popGlobal(); ok {
			c.Resume()
			continue
		}
		if len(e.workers) > 1 {
			victim := e.workers[e.randomVictim(id)]
			if c, ok := victim.stealFront(); ok {
				c.Resume()
				continue
			}
		}

		e.global.mu.Lock()
		if len(e.global.items) == 0 && !e.stopping.Load() {
			e.waitOrTimeout(50 * time.Millisecond)
		}
		e.global.mu.Unlock()
	}
}

// waitOrTimeout blocks on the global condvar for up to d. Held lock is
// e.global.mu, released internally by sync.Cond.Wait. Unlike
// BlockingPool.waitTimeout, the bound here is not an idle timeout that
// retires the worker: it makes a worker periodically recheck its own deque
// and sibling deques for steal opportunities that Broadcast alone might
// race past.
func (e *WorkStealing) waitOrTimeout(d time.Duration) {
	woke := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		e.global.mu.Lock()
		e.global.cond.Broadcast()
		e.global.mu.Unlock()
		close(woke)
	})
	e.global.cond.Wait()
	select {
	case <-woke:
	default:
		timer.Stop()
	}
}

// Block runs body on a detached root task and drives e.r's reactor turns
// on the calling goroutine (acting as the driver, per spec.md §4.5) until
// the root has produced a value, the spawn count is zero, and no
// continuation is queued on the global queue or any worker deque — the
// exact three-part termination contract of spec.md §4.5/§8.
func Block[T any](e *WorkStealing, body task.Body[T]) T {
	resultCh := make(chan T, 1)
	root := task.New(body, func(v T) { resultCh <- v })
	e.enqueue(root.Root())

	queued := func() bool {
		e.global.mu.Lock()
		n := len(e.global.items)
		e.global.mu.Unlock()
		for _, w := range e.workers {
			w.mu.Lock()
			n += len(w.items)
			w.mu.Unlock()
		}
		return n > 0
	}

	for {
		select {
		case v := <-resultCh:
			for e.spawnCnt.Load() != 0 || queued() {
				timeout := time.Millisecond
				_ = e.r.React(&timeout, e)
			}
			return v
		default:
		}
		timeout := 10 * time.Millisecond
		_ = e.r.React(&timeout, e)
	}
}

// Stop signals every worker to exit once its current continuation (if
// any) finishes and wakes them so the exit check runs promptly.
func (e *WorkStealing) Stop() {
	e.stopping.Store(true)
	e.global.mu.Lock()
	e.global.cond.Broadcast()
	e.global.mu.Unlock()
	e.stopped.Wait()
}
