// Package reactor implements the event-demultiplexing engine bridging OS
// readiness and timer events to suspended task continuations: the Source
// registry, timer table, and the react turn that drives both, following
// the design in original_source/include/io/Reactor.hpp.
package reactor

import (
	"sync"
	"time"

	"github.com/LEAVING-7/io/internal/slab"
	"github.com/LEAVING-7/io/task"
	"github.com/rs/zerolog"
)

// Executor is the bridge between a react turn and whatever schedules
// continuations, per spec.md §4.4/§6: the Reactor never resumes directly.
type Executor interface {
	Execute(batch []*task.Continuation)
}

// Option configures a Reactor at construction time.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	poller Poller
}

// WithLogger overrides the Reactor's logger. Defaults to a disabled
// zerolog.Logger (no output) so a Reactor is silent unless configured.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPoller overrides the platform Poller — primarily for tests, which
// substitute a fake Poller to drive deterministic event sequences.
func WithPoller(p Poller) Option {
	return func(o *options) { o.poller = p }
}

func resolveOptions(opts []Option) (options, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.poller == nil {
		p, err := NewPoller()
		if err != nil {
			return options{}, err
		}
		o.poller = p
	}
	return o, nil
}

// Reactor is the event-demultiplexing engine of spec.md §2/§4.4. At most
// one react turn runs at a time, serialized by eventLock.
type Reactor struct {
	log    zerolog.Logger
	poller Poller

	eventLock sync.Mutex
	ticker    uint64

	sourceLock sync.Mutex
	sources    *slab.Slab[*Source]

	timers *timerTable

	closed   sync.Once
	closedCh chan struct{}
}

// New constructs a Reactor with its platform Poller (or the one given via
// WithPoller) and an empty Source registry.
func New(opts ...Option) (*Reactor, error) {
	o, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Reactor{
		log:      o.logger,
		poller:   o.poller,
		sources:  slab.New[*Source](),
		timers:   newTimerTable(),
		closedCh: make(chan struct{}),
	}, nil
}

// InsertIO registers fd with the Reactor, per spec.md §4.2: reserve a Slab
// key, construct the Source, insert it, then register fd with the Poller
// (empty interest mask; SetReadable/SetWritable arm it); on Poller
// failure the Slab entry is rolled back so InsertIO is atomic from the
// caller's perspective.
func (r *Reactor) InsertIO(fd int) (*Source, error) {
	if r.isClosed() {
		return nil, ErrReactorClosed
	}
	r.sourceLock.Lock()
	key := r.sources.VacantEntry()
	src := &Source{fd: fd, key: key}
	r.sources.Insert(key, src)
	r.sourceLock.Unlock()

	if err := r.poller.Add(fd, key); err != nil {
		r.sourceLock.Lock()
		r.sources.TryRemove(key)
		r.sourceLock.Unlock()
		return nil, err
	}
	return src, nil
}

// RemoveIO unregisters source, per spec.md §4.2: the Slab entry is removed
// first, then the Poller is told to drop the fd.
func (r *Reactor) RemoveIO(source *Source) error {
	r.sourceLock.Lock()
	_, ok := r.sources.TryRemove(source.key)
	r.sourceLock.Unlock()
	if !ok {
		r.fatal("remove_io on unknown source key")
		return ErrSourceNotFound
	}
	return r.poller.Del(source.fd)
}

// UpdateIO recomputes source's desired event mask from its current
// Direction occupancy and reissues the Poller registration, per spec.md
// §4.2. Idempotent: two calls with the same Direction state produce
// identical Poller interest (spec.md §8 round-trip property).
func (r *Reactor) UpdateIO(source *Source) error {
	readable, writable := source.interest()
	return r.poller.Mod(source.fd, source.key, readable, writable)
}

// SetReadable parks cont on source's read Direction and rearms the Poller.
// Returns false without rearming if the direction was already occupied —
// a caller contract violation per spec.md §4.2/§7 (parking a second
// continuation into an occupied Direction is a fatal condition upstream
// of this call, not handled here).
func (r *Reactor) SetReadable(source *Source, cont *task.Continuation) (bool, error) {
	if !source.setReadable(cont) {
		return false, nil
	}
	return true, r.UpdateIO(source)
}

// SetWritable is SetReadable for the write Direction.
func (r *Reactor) SetWritable(source *Source, cont *task.Continuation) (bool, error) {
	if !source.setWritable(cont) {
		return false, nil
	}
	return true, r.UpdateIO(source)
}

// InsertTimer schedules cont to be resumed at when, returning an id usable
// with RemoveTimer. Per spec.md §4.3 this only enqueues an op; the timer
// table is mutated on the next react turn. Notify wakes a concurrent
// waiting turn so a newly-inserted near-term timer is not missed until an
// unrelated event arrives.
func (r *Reactor) InsertTimer(when time.Time, cont *task.Continuation) uint64 {
	id := r.timers.nextTimerID()
	r.timers.Insert(id, when, cont)
	if err := r.poller.Notify(); err != nil {
		r.fatal("poller notify failed")
	}
	return id
}

// RemoveTimer cancels a previously inserted timer. Per spec.md §5, the
// continuation is dropped without resume; it is the caller's
// responsibility to race this against whatever the continuation would
// otherwise do.
func (r *Reactor) RemoveTimer(id uint64, when time.Time) {
	r.timers.Remove(id, when)
}

// Notify wakes a concurrent React call, per spec.md §4.1/§6.
func (r *Reactor) Notify() error {
	return r.poller.Notify()
}

// Ticker returns the number of completed react turns, for debugging and
// ordering only — not used for correctness (spec.md GLOSSARY "Ticker").
func (r *Reactor) Ticker() uint64 {
	r.eventLock.Lock()
	defer r.eventLock.Unlock()
	return r.ticker
}

// React runs one turn of spec.md §4.4's algorithm: drain timer ops,
// compute a sleep bound, poll, collect ready continuations, and hand them
// to e. At most one React call proceeds at a time per Reactor (eventLock);
// a concurrent caller blocks until the in-progress turn finishes.
func (r *Reactor) React(timeout *time.Duration, e Executor) error {
	r.eventLock.Lock()
	defer r.eventLock.Unlock()
	return r.reactLocked(timeout, e)
}

// TryReact attempts one react turn without blocking: if another turn is
// already in progress it returns (false, nil) immediately instead of
// waiting, mirroring original_source's ReactorLock::tryLock — for a
// worker that wants to opportunistically pump timers/IO without stalling
// on whatever else is driving the reactor.
func (r *Reactor) TryReact(timeout *time.Duration, e Executor) (bool, error) {
	if !r.eventLock.TryLock() {
		return false, nil
	}
	defer r.eventLock.Unlock()
	return true, r.reactLocked(timeout, e)
}

func (r *Reactor) reactLocked(timeout *time.Duration, e Executor) error {
	if r.isClosed() {
		return ErrReactorClosed
	}

	var handles []*task.Continuation

	now := time.Now()
	nextTimer := r.timers.processTimers(now, &handles)

	waitTimeout := combineTimeouts(timeout, nextTimer)

	r.ticker++

	events := make([]Event, 64)
	n, err := r.poller.Wait(events, waitTimeout)
	if err != nil {
		if perr, ok := err.(*PollerError); ok && perr.Kind == ErrKindInterrupted {
			err = nil
		} else {
			return err
		}
	}

	if n == 0 {
		if waitTimeout == nil || *waitTimeout != 0 {
			r.timers.processTimers(time.Now(), &handles)
		}
	} else {
		r.sourceLock.Lock()
		for i := 0; i < n; i++ {
			ev := events[i]
			src, ok := r.sources.Get(ev.Key)
			if !ok {
				continue
			}
			// Writable is preferred over readable when a single event
			// reports both — a deliberate, documented choice (spec.md
			// §9 Open Question), not an accidental drop of the read
			// continuation: it still sits armed in its Direction and
			// will be taken on a subsequent event.
			if ev.Writable {
				if c := src.takeWritable(); c != nil {
					handles = append(handles, c)
				}
			} else if ev.Readable {
				if c := src.takeReadable(); c != nil {
					handles = append(handles, c)
				}
			}
		}
		r.sourceLock.Unlock()
	}

	e.Execute(handles)
	return nil
}

// combineTimeouts implements the four-way min of spec.md §4.4 step 3.
func combineTimeouts(timeout, nextTimer *time.Duration) *time.Duration {
	switch {
	case timeout != nil && nextTimer != nil:
		d := *timeout
		if *nextTimer < d {
			d = *nextTimer
		}
		return &d
	case timeout != nil:
		t := *timeout
		return &t
	case nextTimer != nil:
		t := *nextTimer
		return &t
	default:
		return nil
	}
}

// isClosed reports whether Close has already run.
func (r *Reactor) isClosed() bool {
	select {
	case <-r.closedCh:
		return true
	default:
		return false
	}
}

// Close releases the Reactor's Poller resources. Idempotent.
func (r *Reactor) Close() error {
	var err error
	r.closed.Do(func() {
		close(r.closedCh)
		err = r.poller.Close()
	})
	return err
}

// fatal logs and terminates the process for contract violations, per
// spec.md §7: these represent programming errors, not recoverable
// environment conditions.
func (r *Reactor) fatal(msg string) {
	r.log.Fatal().Msg(msg)
}
