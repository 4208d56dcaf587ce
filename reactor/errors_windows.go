//go:build windows

package reactor

// classifyErrno has nothing to classify against on windows — windowsPoller
// never produces a wrapped PollerError (see poller_windows.go).
func classifyErrno(err error) ErrorKind {
	return ErrKindOther
}
