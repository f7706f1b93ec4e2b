package testutil

import (
	"context"
	"sync"

	"github.com/zkputer/zkputer-go/transport"
	"github.com/zkputer/zkputer-go/wire"
)

// Handler inspects one decoded client frame and optionally produces a reply.
// Returning nil sends nothing, which is how tests simulate a server that
// never answers.
type Handler func(msg wire.Message) *wire.Message

// FakeTransport is an in-memory transport.Transport. Frames written by the
// client are decoded and handed to the Handler; replies are delivered on the
// frames channel exactly as a process's stdout would be.
type FakeTransport struct {
	Handler Handler

	// StartErr, when set, makes Start fail (spawn failure simulation).
	StartErr error

	// WriteErr, when set, makes Write fail (broken stdin pipe simulation).
	WriteErr error

	mu       sync.Mutex
	dec      wire.Decoder
	started  bool
	finished bool
	requests []wire.Message

	frames chan wire.Message
	exited chan error
}

// NewFakeTransport creates a fake with the given reply handler.
func NewFakeTransport(handler Handler) *FakeTransport {
	return &FakeTransport{
		Handler: handler,
		frames:  make(chan wire.Message, 64),
		exited:  make(chan error, 1),
	}
}

// Start marks the fake process as running.
func (t *FakeTransport) Start(ctx context.Context) error {
	if t.StartErr != nil {
		return t.StartErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	return nil
}

// Write decodes the client's frame and runs the handler.
func (t *FakeTransport) Write(p []byte) error {
	if t.WriteErr != nil {
		return t.WriteErr
	}

	t.mu.Lock()
	if !t.started || t.finished {
		t.mu.Unlock()
		return transport.ErrNotRunning
	}
	msgs, err := t.dec.Feed(p)
	t.requests = append(t.requests, msgs...)
	handler := t.Handler
	t.mu.Unlock()

	if err != nil {
		return err
	}
	if handler == nil {
		return nil
	}
	for _, msg := range msgs {
		if reply := handler(msg); reply != nil {
			t.Deliver(*reply)
		}
	}
	return nil
}

// Frames returns the server-to-client message channel.
func (t *FakeTransport) Frames() <-chan wire.Message { return t.frames }

// Exited yields the terminal process error once Frames is closed.
func (t *FakeTransport) Exited() <-chan error { return t.exited }

// Running reports whether the fake process is alive.
func (t *FakeTransport) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && !t.finished
}

// Close simulates killing the process.
func (t *FakeTransport) Close() error {
	t.Exit(nil)
	return nil
}

// Deliver pushes one message to the client, out of band of any request.
func (t *FakeTransport) Deliver(msg wire.Message) {
	t.mu.Lock()
	finished := t.finished
	t.mu.Unlock()
	if finished {
		return
	}
	t.frames <- msg
}

// Exit simulates process termination with the given error. Idempotent.
func (t *FakeTransport) Exit(err error) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.mu.Unlock()

	close(t.frames)
	t.exited <- err
}

// Requests snapshots every decoded frame the client has written so far.
func (t *FakeTransport) Requests() []wire.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wire.Message, len(t.requests))
	copy(out, t.requests)
	return out
}

// MethodsSent returns the method names of written frames in order.
// Responses the client might write (it never does) would appear as "".
func (t *FakeTransport) MethodsSent() []string {
	reqs := t.Requests()
	methods := make([]string, len(reqs))
	for i, r := range reqs {
		methods[i] = r.Method
	}
	return methods
}
