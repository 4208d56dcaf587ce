package executor

import (
	"sync"
	"time"

	"github.com/LEAVING-7/io/reactor"
	"github.com/LEAVING-7/io/task"
	"github.com/rs/zerolog"
)

// blockingIdleTimeout mirrors the original BlockingThreadPool's 500ms
// condition-variable wait: a worker with nothing to do for this long
// self-terminates.
const blockingIdleTimeout = 500 * time.Millisecond

// blockingDefaultCap mirrors BlockingExecutor's hard cap of 500 threads.
const blockingDefaultCap = 500

// BlockingPool is the elastic thread pool of spec.md §4.5 onto which
// BlockSpawn offloads synchronous callables: lazily started, bounded by
// cap, growing when queue depth outpaces idle workers and shrinking idle
// workers back out after blockingIdleTimeout.
type BlockingPool struct {
	log zerolog.Logger
	cap int

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []func()
	idleCount int
	threadCnt int
}

// NewBlockingPool constructs a BlockingPool with the given thread cap.
// cap <= 0 uses blockingDefaultCap.
func NewBlockingPool(cap int, log zerolog.Logger) *BlockingPool {
	if cap <= 0 {
		cap = blockingDefaultCap
	}
	p := &BlockingPool{log: log, cap: cap}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// execute enqueues fn and grows the pool if warranted, matching
// BlockingThreadPool::execute.
func (p *BlockingPool) execute(fn func()) {
	p.mu.Lock()
	p.queue = append(p.queue, fn)
	p.cond.Signal()
	p.growPool()
	p.mu.Unlock()
}

// growPool starts new worker goroutines while queue depth exceeds 5x the
// idle worker count and the thread count is under cap — the exact policy
// from BlockingThreadPool::growPool. Callers must hold p.mu.
func (p *BlockingPool) growPool() {
	for len(p.queue) > p.idleCount*5 && p.threadCnt < p.cap {
		p.threadCnt++
		p.idleCount++
		p.log.Debug().Int("threads", p.threadCnt).Msg("blocking pool grew")
		go p.loop()
	}
}

func (p *BlockingPool) loop() {
	p.mu.Lock()
	for {
		p.idleCount--
		for len(p.queue) > 0 {
			p.growPool()
			fn := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			fn()
			p.mu.Lock()
		}
		p.idleCount++

		timedOut := p.waitTimeout(blockingIdleTimeout)
		if timedOut && len(p.queue) == 0 {
			p.idleCount--
			p.threadCnt--
			p.mu.Unlock()
			return
		}
	}
}

// waitTimeout blocks on p.cond for up to d, holding p.mu throughout
// (released internally by sync.Cond.Wait), reporting whether it woke due
// to the timeout rather than a Signal.
func (p *BlockingPool) waitTimeout(d time.Duration) bool {
	woke := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		close(woke)
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	select {
	case <-woke:
	default:
		p.cond.Wait()
	}
	select {
	case <-woke:
		timer.Stop()
		return true
	default:
		timer.Stop()
		return false
	}
}

// BlockSpawn offloads fn onto the pool and invokes onDone with its result
// once fn returns, on whichever pool thread ran it — the at-most-one
// invocation, no-affinity contract of spec.md §4.5.
func BlockSpawn[T any](p *BlockingPool, fn func() T, onDone func(T)) {
	p.execute(func() {
		onDone(fn())
	})
}

// Await suspends the calling task, runs fn on p, and resumes with fn's
// result once the pool thread finishes — the awaitable wrapper around
// BlockSpawn a task body actually calls, matching the
// executor.block_spawn(fn, args...) entry point of spec.md §6. The
// resuming party is whichever pool thread runs fn; callers must not
// assume any particular goroutine resumes them. r is notified after the
// resume so a driver (Inline.Block/WorkStealing.Block) parked in
// poller.Wait wakes up to observe whatever the resumed continuation just
// did, rather than waiting out its full react timeout.
func Await[T any](y *task.Yield, r *reactor.Reactor, p *BlockingPool, fn func() T) T {
	var result T
	y.Suspend(func(next *task.Continuation) {
		BlockSpawn(p, fn, func(v T) {
			result = v
			next.Resume()
			_ = r.Notify()
		})
	})
	return result
}
