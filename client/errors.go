package client

import "errors"

var (
	// ErrNotRunning reports a request attempted while no server process is
	// alive and none could be started.
	ErrNotRunning = errors.New("zkputer client: server process not running")

	// ErrClosed reports use of a client after Close.
	ErrClosed = errors.New("zkputer client: closed")

	// ErrProcessExited reports that the server process terminated while the
	// request was outstanding.
	ErrProcessExited = errors.New("zkputer client: server process exited")
)
