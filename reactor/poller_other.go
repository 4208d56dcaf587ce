//go:build !linux && !darwin && !windows

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller is the portable fallback Poller for Unix platforms without a
// dedicated epoll/kqueue backend, built on unix.Poll. It is O(n) per Wait
// call in the number of registered fds, unlike epoll/kqueue — acceptable
// for the platforms that fall back to it, which the pack does not target
// for production scale.
type pollPoller struct {
	mu        sync.Mutex
	fds       []unix.PollFd
	keys      map[int]int // fd -> key
	wakeRead  int
	wakeWrite int
}

// NewPoller constructs the portable Poller fallback.
func NewPoller() (Poller, error) {
	var pipeFDs [2]int
	if err := unix.Pipe(pipeFDs[:]); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(pipeFDs[0], true); err != nil {
		_ = unix.Close(pipeFDs[0])
		_ = unix.Close(pipeFDs[1])
		return nil, err
	}
	p := &pollPoller{
		keys:      make(map[int]int),
		wakeRead:  pipeFDs[0],
		wakeWrite: pipeFDs[1],
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(p.wakeRead), Events: unix.POLLIN})
	return p, nil
}

func (p *pollPoller) Add(fd int, key int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd)})
	p.keys[fd] = key
	return nil
}

func (p *pollPoller) Mod(fd int, key int, readable, writable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var events int16
	if readable {
		events |= unix.POLLIN
	}
	if writable {
		events |= unix.POLLOUT
	}
	for i := range p.fds {
		if int(p.fds[i].Fd) == fd {
			p.fds[i].Events = events
			return nil
		}
	}
	return ErrSourceNotFound
}

func (p *pollPoller) Del(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.fds {
		if int(p.fds[i].Fd) == fd {
			p.fds = append(p.fds[:i], p.fds[i+1:]...)
			delete(p.keys, fd)
			return nil
		}
	}
	return ErrSourceNotFound
}

func (p *pollPoller) Wait(out []Event, timeout *time.Duration) (int, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, len(p.fds))
	copy(fds, p.fds)
	p.mu.Unlock()

	timeoutMs := -1
	if timeout != nil {
		timeoutMs = int(timeout.Milliseconds())
	}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErrno(err)
	}
	if n == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for i := range fds {
		if fds[i].Revents == 0 {
			continue
		}
		if int(fds[i].Fd) == p.wakeRead {
			p.drainWake()
			continue
		}
		if count >= len(out) {
			break
		}
		key, ok := p.keys[int(fds[i].Fd)]
		if !ok {
			continue
		}
		out[count] = Event{
			Key:      key,
			Readable: fds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0,
			Writable: fds[i].Revents&(unix.POLLOUT|unix.POLLERR) != 0,
		}
		count++
	}
	return count, nil
}

func (p *pollPoller) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(p.wakeRead, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *pollPoller) Notify() error {
	_, err := unix.Write(p.wakeWrite, []byte{0})
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (p *pollPoller) Close() error {
	_ = unix.Close(p.wakeRead)
	_ = unix.Close(p.wakeWrite)
	return nil
}
