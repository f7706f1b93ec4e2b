package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/zkputer/zkputer-go/logging"
	"github.com/zkputer/zkputer-go/wire"
)

// killGracePeriod is how long Close waits for the process to honor SIGTERM
// before killing it outright.
const killGracePeriod = 5 * time.Second

// frameBufferSize is the capacity of the decoded-frame channel. The client
// consumes frames promptly; the buffer only absorbs short bursts.
const frameBufferSize = 16

// Stdio runs the verification server as a child process and speaks the
// framed protocol over its standard input/output. One Stdio value covers one
// process instance from spawn to exit.
type Stdio struct {
	cfg    Config
	logger logging.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool
	done    bool

	frames   chan wire.Message
	exited   chan error
	exitDone chan struct{}
}

// NewStdio creates a transport for the given process configuration. The
// process is not spawned until Start.
func NewStdio(cfg Config) *Stdio {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Stdio{
		cfg:      cfg,
		logger:   logger,
		frames:   make(chan wire.Message, frameBufferSize),
		exited:   make(chan error, 1),
		exitDone: make(chan struct{}),
	}
}

// Start spawns the server process and begins decoding its output. It is a
// no-op while the process is alive and fails once the process has exited;
// callers construct a fresh Stdio to respawn.
func (t *Stdio) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}
	if t.done {
		return ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.cfg.Command == "" {
		return fmt.Errorf("transport: no server command configured")
	}

	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	cmd.Env = overlayEnv(os.Environ(), t.cfg.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("transport: open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transport: open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("transport: open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transport: spawn %q: %w", t.cfg.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.running = true
	t.logger.Debug("server process started", "command", t.cfg.Command, "pid", cmd.Process.Pid)

	readDone := make(chan struct{})
	go t.readLoop(stdout, readDone)
	go t.drainStderr(stderr)
	go t.waitForExit(readDone)

	return nil
}

// Write sends one encoded frame to the process's standard input. Concurrent
// writers are serialized so frames never interleave on the pipe.
func (t *Stdio) Write(p []byte) error {
	t.mu.Lock()
	stdin := t.stdin
	running := t.running
	t.mu.Unlock()

	if !running || stdin == nil {
		return ErrNotRunning
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := stdin.Write(p); err != nil {
		return fmt.Errorf("transport: write frame: %w", err)
	}
	return nil
}

// Frames returns the channel of decoded messages. It is closed when the
// process's output stream ends.
func (t *Stdio) Frames() <-chan wire.Message {
	return t.frames
}

// Exited yields the terminal process error once, after Frames is closed.
func (t *Stdio) Exited() <-chan error {
	return t.exited
}

// Running reports whether the process is alive.
func (t *Stdio) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Close terminates the process. It sends SIGTERM, escalating to SIGKILL if
// the process ignores it beyond a grace period. Safe to call when the
// process already exited or was never started.
func (t *Stdio) Close() error {
	t.mu.Lock()
	cmd := t.cmd
	running := t.running
	t.done = true
	t.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Signal delivery can fail on platforms without SIGTERM support or
		// when the process is already gone; fall back to Kill.
		_ = cmd.Process.Kill()
		return nil
	}

	go func() {
		select {
		case <-t.exitDone:
		case <-time.After(killGracePeriod):
			_ = cmd.Process.Kill()
		}
	}()

	return nil
}

// readLoop feeds stdout through the incremental decoder, forwarding every
// complete message. A malformed header discards the buffered tail but keeps
// the stream open; body-level JSON failures are dropped inside the decoder.
func (t *Stdio) readLoop(stdout io.Reader, done chan<- struct{}) {
	defer close(done)
	defer close(t.frames)

	dec := &wire.Decoder{}
	buf := make([]byte, 4096)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			msgs, decErr := dec.Feed(buf[:n])
			if decErr != nil {
				t.logger.Warn("discarding receive buffer after malformed frame header")
			}
			for _, msg := range msgs {
				t.frames <- msg
			}
		}
		if err != nil {
			if err != io.EOF {
				t.logger.Debug("server stdout closed", "error", err.Error())
			}
			return
		}
	}
}

// drainStderr consumes the process's standard error so the pipe never fills.
// Content is discarded unless LogStderr is set.
func (t *Stdio) drainStderr(stderr io.Reader) {
	if !t.cfg.LogStderr {
		_, _ = io.Copy(io.Discard, stderr)
		return
	}
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		t.logger.Debug("server stderr", "line", scanner.Text())
	}
}

// waitForExit reaps the process after its output stream has been fully
// consumed, then publishes the exit outcome.
func (t *Stdio) waitForExit(readDone <-chan struct{}) {
	<-readDone
	err := t.cmd.Wait()

	t.mu.Lock()
	t.running = false
	t.done = true
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("server process exited", "error", err.Error())
	} else {
		t.logger.Debug("server process exited")
	}
	t.exited <- err
	close(t.exitDone)
}

// overlayEnv merges explicit overrides onto the inherited environment.
// Later entries win when keys repeat, so appending is sufficient.
func overlayEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overrides))
	env = append(env, base...)
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
