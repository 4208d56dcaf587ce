//go:build !windows

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// classifyErrno maps a raw unix.Errno to its ErrorKind per spec.md §7's
// taxonomy. Anything not one of the recognized errnos is ErrKindOther.
func classifyErrno(err error) ErrorKind {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return ErrKindOther
	}
	switch errno {
	case unix.EINVAL:
		return ErrKindInvalidArgument
	case unix.ENOENT, unix.EBADF:
		return ErrKindNoSuchFile
	case unix.EINTR:
		return ErrKindInterrupted
	case unix.EAGAIN:
		return ErrKindWouldBlock
	default:
		return ErrKindOther
	}
}
