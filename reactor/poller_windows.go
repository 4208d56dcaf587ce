//go:build windows

package reactor

import (
	"errors"
	"time"
)

// errWindowsUnsupported is returned by every windowsPoller operation.
// Per spec.md §1, concrete poll backends beyond their abstract contract
// are out of scope; IOCP needs its own completion-port driven turn loop
// (go-eventloop's poller_windows.go shows what that looks like — a
// second, incompatible Wait model built around GetQueuedCompletionStatus
// rather than a batch of ready events) which this runtime does not build.
// windowsPoller exists only so the package still compiles on windows.
var errWindowsUnsupported = errors.New("reactor: windows poller backend not implemented, see spec.md §1 scope")

type windowsPoller struct{}

// NewPoller returns a stub Poller on Windows. Every method except Close
// returns errWindowsUnsupported; Close returns nil.
func NewPoller() (Poller, error) {
	return windowsPoller{}, nil
}

func (windowsPoller) Add(fd int, key int) error { return errWindowsUnsupported }
func (windowsPoller) Mod(fd int, key int, readable, writable bool) error {
	return errWindowsUnsupported
}
func (windowsPoller) Del(fd int) error { return errWindowsUnsupported }
func (windowsPoller) Wait(out []Event, timeout *time.Duration) (int, error) {
	return 0, errWindowsUnsupported
}
func (windowsPoller) Notify() error { return errWindowsUnsupported }
func (windowsPoller) Close() error  { return nil }
