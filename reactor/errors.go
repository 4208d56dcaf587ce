package reactor

import "errors"

// ErrorKind classifies a Poller failure, per spec.md §7. Interrupted is
// never returned to a caller — it is handled internally and surfaced as a
// successful, empty turn.
type ErrorKind int

const (
	// ErrKindOther is an IoError(other): anything not classified below.
	ErrKindOther ErrorKind = iota
	// ErrKindInvalidArgument corresponds to the poller rejecting its input.
	ErrKindInvalidArgument
	// ErrKindNoSuchFile means the given fd is not known to the OS.
	ErrKindNoSuchFile
	// ErrKindInterrupted is handled internally; see Poller.Wait.
	ErrKindInterrupted
	// ErrKindWouldBlock is part of the normal readiness protocol, not an
	// error condition, for individual (non-Wait) operations.
	ErrKindWouldBlock
)

// PollerError wraps a system error with its ErrorKind classification.
type PollerError struct {
	Kind ErrorKind
	Err  error
}

func (e *PollerError) Error() string {
	return e.Err.Error()
}

func (e *PollerError) Unwrap() error {
	return e.Err
}

// wrapErrno wraps a raw Poller syscall error as a classified PollerError
// (via the platform's classifyErrno), or returns nil unchanged.
func wrapErrno(err error) error {
	if err == nil {
		return nil
	}
	return &PollerError{Kind: classifyErrno(err), Err: err}
}

// Sentinel errors surfaced by the Reactor and Source registry.
var (
	// ErrSourceNotFound is returned when a Source key is not present in the
	// registry's Slab — a caller-side bug (e.g. double RemoveIO), not a
	// transient condition.
	ErrSourceNotFound = errors.New("reactor: source not found")
	// ErrReactorClosed is returned by InsertIO and React/TryReact once the
	// Reactor has been closed.
	ErrReactorClosed = errors.New("reactor: closed")
)
