//go:build linux

package reactor

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller on Linux using epoll, with an eventfd used
// as the Notify() wake channel — the same pairing
// github.com/joeycumines/go-eventloop's poller_linux.go and wakeup_linux.go
// use, adapted here to key events by Source key instead of fd, and to
// report readiness through Poller.Wait rather than dispatching callbacks
// inline from inside the poll syscall.
type epollPoller struct {
	epfd     int
	wakeFD   int
	eventBuf [256]unix.EpollEvent
}

// NewPoller constructs the platform Poller (epoll, on Linux).
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	p := &epollPoller{epfd: epfd, wakeFD: wakeFD}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     -1, // sentinel: not a registered Source key
	}); err != nil {
		_ = unix.Close(wakeFD)
		_ = unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

func (p *epollPoller) Add(fd int, key int) error {
	return wrapErrno(unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: 0,
		Fd:     int32(key),
	}))
}

func (p *epollPoller) Mod(fd int, key int, readable, writable bool) error {
	var events uint32
	if readable {
		events |= unix.EPOLLIN
	}
	if writable {
		events |= unix.EPOLLOUT
	}
	return wrapErrno(unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(key),
	}))
}

func (p *epollPoller) Del(fd int) error {
	return wrapErrno(unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil))
}

func (p *epollPoller) Wait(out []Event, timeout *time.Duration) (int, error) {
	timeoutMs := -1
	if timeout != nil {
		timeoutMs = int(timeout.Milliseconds())
	}

	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErrno(err)
	}

	count := 0
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		if ev.Fd < 0 {
			// The wake eventfd fired; drain it so the next Wait doesn't
			// spuriously return immediately.
			p.drainWake()
			continue
		}
		if count >= len(out) {
			break
		}
		out[count] = Event{
			Key:      int(ev.Fd),
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0,
		}
		count++
	}
	return count, nil
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.wakeFD, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *epollPoller) Notify() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakeFD, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (p *epollPoller) Close() error {
	_ = unix.Close(p.wakeFD)
	return unix.Close(p.epfd)
}
