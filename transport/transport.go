package transport

import (
	"context"
	"errors"

	"github.com/zkputer/zkputer-go/logging"
	"github.com/zkputer/zkputer-go/wire"
)

// ErrNotRunning is returned when a write is attempted and no live process
// exists behind the transport.
var ErrNotRunning = errors.New("transport: server process not running")

// Transport abstracts the connection to the verification server so the
// client can be exercised against an in-memory fake in tests.
//
// Contract:
//   - Start is idempotent while the process is alive.
//   - Write delivers one encoded frame; writes may be issued concurrently.
//   - Frames yields every decoded message in stream order and is closed when
//     the output stream ends.
//   - Exited yields the terminal process error (nil on clean exit) exactly
//     once, after Frames has been closed.
type Transport interface {
	Start(ctx context.Context) error
	Write(p []byte) error
	Frames() <-chan wire.Message
	Exited() <-chan error
	Running() bool
	Close() error
}

// Config describes how to spawn the server process.
type Config struct {
	// Command is the server executable. Resolved via PATH when relative.
	Command string

	// Args are passed to the executable verbatim.
	Args []string

	// Env entries overlay the inherited environment.
	Env map[string]string

	// LogStderr routes the server's standard error through the logger at
	// debug level. When false (the default) stderr is drained and dropped,
	// matching the server's expectation that its diagnostics are ignored.
	LogStderr bool

	// Logger receives transport diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}
