package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/LEAVING-7/io/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePoller is a deterministic, in-process stand-in for an OS poller,
// used to exercise Reactor logic without epoll/kqueue/Poll.
type fakePoller struct {
	mu      sync.Mutex
	masks   map[int]Event // fd -> current registration (Key/Readable/Writable)
	pending []Event       // events queued for the next Wait call
	notifyC chan struct{}
	closed  bool
}

func newFakePoller() *fakePoller {
	return &fakePoller{masks: make(map[int]Event), notifyC: make(chan struct{}, 64)}
}

func (p *fakePoller) Add(fd int, key int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.masks[fd] = Event{Key: key}
	return nil
}

func (p *fakePoller) Mod(fd int, key int, readable, writable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.masks[fd] = Event{Key: key, Readable: readable, Writable: writable}
	return nil
}

func (p *fakePoller) Del(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.masks, fd)
	return nil
}

// fire enqueues ev to be reported by the next Wait call and wakes it.
func (p *fakePoller) fire(ev Event) {
	p.mu.Lock()
	p.pending = append(p.pending, ev)
	p.mu.Unlock()
	select {
	case p.notifyC <- struct{}{}:
	default:
	}
}

func (p *fakePoller) Wait(out []Event, timeout *time.Duration) (int, error) {
	deadline := time.Now().Add(24 * time.Hour)
	if timeout != nil {
		deadline = time.Now().Add(*timeout)
	}
	for {
		p.mu.Lock()
		if len(p.pending) > 0 {
			n := copy(out, p.pending)
			p.pending = nil
			p.mu.Unlock()
			return n, nil
		}
		p.mu.Unlock()

		if timeout != nil && *timeout == 0 {
			return 0, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		select {
		case <-p.notifyC:
			// A wake from fire or Notify ends the wait: report whatever
			// is pending, or a spurious (0, nil) return, per Poller.Wait.
			p.mu.Lock()
			n := copy(out, p.pending)
			p.pending = nil
			p.mu.Unlock()
			return n, nil
		case <-time.After(remaining):
			return 0, nil
		}
	}
}

func (p *fakePoller) Notify() error {
	select {
	case p.notifyC <- struct{}{}:
	default:
	}
	return nil
}

func (p *fakePoller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// recordingExecutor collects every continuation handed to Execute, for
// assertions, and optionally resumes them synchronously.
type recordingExecutor struct {
	mu      sync.Mutex
	batches [][]*task.Continuation
	resume  bool
}

func (e *recordingExecutor) Execute(batch []*task.Continuation) {
	e.mu.Lock()
	e.batches = append(e.batches, batch)
	e.mu.Unlock()
	if e.resume {
		for _, c := range batch {
			c.Resume()
		}
	}
}

func (e *recordingExecutor) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, b := range e.batches {
		n += len(b)
	}
	return n
}

func newTestReactor(t *testing.T) (*Reactor, *fakePoller) {
	t.Helper()
	fp := newFakePoller()
	r, err := New(WithPoller(fp))
	require.NoError(t, err)
	return r, fp
}

func TestInsertRemoveIOLeavesStateUnchanged(t *testing.T) {
	r, fp := newTestReactor(t)

	before := r.sources.Len()
	src, err := r.InsertIO(42)
	require.NoError(t, err)
	require.NoError(t, r.RemoveIO(src))

	assert.Equal(t, before, r.sources.Len())
	_, ok := fp.masks[42]
	assert.False(t, ok, "poller registration must be removed")
}

func TestUpdateIOIdempotent(t *testing.T) {
	r, fp := newTestReactor(t)
	src, err := r.InsertIO(7)
	require.NoError(t, err)

	cont := task.Spawn(func(y *task.Yield) struct{} { return struct{}{} }).Root()
	ok, err := r.SetReadable(src, cont)
	require.True(t, ok)
	require.NoError(t, err)

	first := fp.masks[7]
	require.NoError(t, r.UpdateIO(src))
	second := fp.masks[7]
	assert.Equal(t, first, second)
}

func TestWritablePreferredOverReadable(t *testing.T) {
	r, fp := newTestReactor(t)
	src, err := r.InsertIO(3)
	require.NoError(t, err)

	var readResumed, writeResumed bool
	readCont := task.New(func(y *task.Yield) struct{} { return struct{}{} }, func(struct{}) { readResumed = true }).Root()
	writeCont := task.New(func(y *task.Yield) struct{} { return struct{}{} }, func(struct{}) { writeResumed = true }).Root()

	ok, err := r.SetReadable(src, readCont)
	require.True(t, ok)
	require.NoError(t, err)
	ok, err = r.SetWritable(src, writeCont)
	require.True(t, ok)
	require.NoError(t, err)

	fp.fire(Event{Key: src.Key(), Readable: true, Writable: true})

	exec := &recordingExecutor{resume: true}
	zero := time.Duration(0)
	require.NoError(t, r.React(&zero, exec))

	assert.True(t, writeResumed)
	assert.False(t, readResumed, "read continuation must remain parked for a subsequent event")

	// the read direction is still armed: a second event should deliver it.
	fp.fire(Event{Key: src.Key(), Readable: true})
	require.NoError(t, r.React(&zero, exec))
	assert.True(t, readResumed)
}

func TestProcessTimersEmptyTableNoSleep(t *testing.T) {
	tt := newTimerTable()
	var out []*task.Continuation
	wait := tt.processTimers(time.Now(), &out)
	require.NotNil(t, wait)
	assert.Equal(t, time.Duration(0), *wait)
	assert.Empty(t, out)
}

func TestTimerCancelNeverResumes(t *testing.T) {
	r, _ := newTestReactor(t)
	resumed := false
	cont := task.New(func(y *task.Yield) struct{} { return struct{}{} }, func(struct{}) { resumed = true }).Root()

	id := r.InsertTimer(time.Now().Add(100*time.Millisecond), cont)
	r.RemoveTimer(id, time.Now().Add(100*time.Millisecond))

	exec := &recordingExecutor{resume: true}
	short := 10 * time.Millisecond
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, r.React(&short, exec))
	}
	assert.False(t, resumed)
}

func TestTryReactDoesNotBlock(t *testing.T) {
	r, _ := newTestReactor(t)
	r.eventLock.Lock()
	defer r.eventLock.Unlock()

	exec := &recordingExecutor{}
	ok, err := r.TryReact(nil, exec)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestNotifyWakesConcurrentWait(t *testing.T) {
	r, _ := newTestReactor(t)

	// With no pending timers, processTimers always reports a 0 next-wake
	// per spec.md §4.3 step 3 ("no pending entries either -> don't sleep"),
	// which would make React return immediately regardless of Notify. A
	// far-future timer gives React something worth sleeping on so Notify
	// has an observable effect to wake early from.
	farCont := task.Spawn(func(y *task.Yield) struct{} { return struct{}{} }).Root()
	r.InsertTimer(time.Now().Add(10*time.Second), farCont)

	done := make(chan struct{})
	start := time.Now()
	go func() {
		exec := &recordingExecutor{}
		_ = r.React(nil, exec)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.Notify())

	select {
	case <-done:
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("react never returned after notify")
	}
}
