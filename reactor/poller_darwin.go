//go:build darwin

package reactor

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// keyToUdata and udataToKey stash a Source key inside a kevent's opaque
// Udata field instead of a real pointer, matching the Ident/Udata-as-id
// conventions go-eventloop uses on this platform.
func keyToUdata(key int) *byte {
	return (*byte)(unsafe.Pointer(uintptr(key)))
}

func udataToKey(p *byte) int {
	return int(uintptr(unsafe.Pointer(p)))
}

// kqueuePoller implements Poller on Darwin/BSD using kqueue, with a
// self-pipe used for Notify() — the same pairing
// github.com/joeycumines/go-eventloop's poller_darwin.go and
// wakeup_darwin.go use, adapted to key events by Source key (stashed in
// the kevent's Udata field) instead of fd.
type kqueuePoller struct {
	kq         int
	wakeRead   int
	wakeWrite  int
	changeBuf  []unix.Kevent_t
	eventBuf   [256]unix.Kevent_t
}

// NewPoller constructs the platform Poller (kqueue, on Darwin/BSD).
func NewPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	var pipeFDs [2]int
	if err := unix.Pipe(pipeFDs[:]); err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	if err := unix.SetNonblock(pipeFDs[0], true); err != nil {
		_ = unix.Close(pipeFDs[0])
		_ = unix.Close(pipeFDs[1])
		_ = unix.Close(kq)
		return nil, err
	}

	p := &kqueuePoller{kq: kq, wakeRead: pipeFDs[0], wakeWrite: pipeFDs[1]}

	wakeEvent := unix.Kevent_t{
		Ident:  uint64(p.wakeRead),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Udata:  nil,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wakeEvent}, nil, nil); err != nil {
		_ = unix.Close(pipeFDs[0])
		_ = unix.Close(pipeFDs[1])
		_ = unix.Close(kq)
		return nil, err
	}
	return p, nil
}

func (p *kqueuePoller) Add(fd int, key int) error {
	// kqueue has no no-op registration analogous to epoll's empty-mask Add;
	// interest is armed per-filter by Mod, so Add is a deliberate no-op —
	// matching the epoll backend's contract that Add alone arms nothing.
	return nil
}

func (p *kqueuePoller) Mod(fd int, key int, readable, writable bool) error {
	var changes []unix.Kevent_t
	readFlags := uint16(unix.EV_DELETE)
	if readable {
		readFlags = unix.EV_ADD | unix.EV_CLEAR
	}
	changes = append(changes, unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  readFlags,
		Udata:  keyToUdata(key),
	})

	writeFlags := uint16(unix.EV_DELETE)
	if writable {
		writeFlags = unix.EV_ADD | unix.EV_CLEAR
	}
	changes = append(changes, unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_WRITE,
		Flags:  writeFlags,
		Udata:  keyToUdata(key),
	})

	_, err := unix.Kevent(p.kq, changes, nil, nil)
	// EV_DELETE on a filter that was never armed returns ENOENT; that is
	// expected whenever only one direction was previously active.
	if err != nil && err != unix.ENOENT {
		return wrapErrno(err)
	}
	return nil
}

func (p *kqueuePoller) Del(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err != nil && err != unix.ENOENT {
		return wrapErrno(err)
	}
	return nil
}

func (p *kqueuePoller) Wait(out []Event, timeout *time.Duration) (int, error) {
	var ts *unix.Timespec
	if timeout != nil {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErrno(err)
	}

	// merge read/write kevents that land for the same key in one Wait call
	merged := make(map[int]*Event)
	order := make([]int, 0, n)
	count := 0
	for i := 0; i < n; i++ {
		kv := p.eventBuf[i]
		if int(kv.Ident) == p.wakeRead {
			p.drainWake()
			continue
		}
		key := udataToKey(kv.Udata)
		ev, ok := merged[key]
		if !ok {
			if count >= len(out) {
				continue
			}
			out[count] = Event{Key: key}
			ev = &out[count]
			merged[key] = ev
			order = append(order, count)
			count++
		}
		switch kv.Filter {
		case unix.EVFILT_READ:
			ev.Readable = true
		case unix.EVFILT_WRITE:
			ev.Writable = true
		}
	}
	return count, nil
}

func (p *kqueuePoller) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(p.wakeRead, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *kqueuePoller) Notify() error {
	_, err := unix.Write(p.wakeWrite, []byte{0})
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (p *kqueuePoller) Close() error {
	_ = unix.Close(p.wakeRead)
	_ = unix.Close(p.wakeWrite)
	return unix.Close(p.kq)
}
