package orchestrator

import "errors"

var (
	// ErrMissingSession is returned when a capture carries no source
	// session ID.
	ErrMissingSession = errors.New("orchestrator: missing source session id")
	// ErrOpenSession is returned when a target session could not be
	// opened; the capture is aborted.
	ErrOpenSession = errors.New("orchestrator: opening target session failed")
)
