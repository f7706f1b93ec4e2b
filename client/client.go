package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zkputer/zkputer-go/logging"
	"github.com/zkputer/zkputer-go/mcp"
	"github.com/zkputer/zkputer-go/transport"
	"github.com/zkputer/zkputer-go/wire"
)

// DefaultRequestTimeout bounds how long a single request may await its
// response before it is failed locally.
const DefaultRequestTimeout = 30 * time.Second

// clientVersion is reported to the server in the initialize handshake.
const clientVersion = "0.1.0"

// sessionState tracks handshake progress for one client instance.
type sessionState int

const (
	stateUninitialized sessionState = iota
	stateInitializing
	stateReady
	stateClosed
)

// Options configures a Client.
type Options struct {
	// Command is the server executable to spawn on first use.
	Command string

	// Args are passed to the server executable verbatim.
	Args []string

	// Env entries overlay the inherited environment of the server process.
	Env map[string]string

	// RequestTimeout is the per-request response deadline.
	RequestTimeout time.Duration

	// ClientInfo identifies this client during the handshake.
	ClientInfo mcp.ClientInfo

	// Logger receives protocol diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger

	// LogServerStderr routes the server's stderr to the logger instead of
	// discarding it.
	LogServerStderr bool

	// RateLimit, when set, throttles application-level tool calls. The
	// handshake is exempt.
	RateLimit *rate.Limiter

	// TransportFactory overrides how process transports are constructed.
	// Tests inject in-memory fakes here; production code leaves it nil and
	// gets a stdio transport built from Command/Args/Env.
	TransportFactory func() transport.Transport
}

// initFlight is one in-progress handshake shared by every caller that
// arrives while the session is initializing. err is written exactly once,
// before done is closed.
type initFlight struct {
	done chan struct{}
	err  error
}

// callOutcome carries either a raw result or a failure to the goroutine
// awaiting a response.
type callOutcome struct {
	result json.RawMessage
	err    error
}

// pendingCall is one in-flight request awaiting its response.
type pendingCall struct {
	method string
	timer  *time.Timer
	ch     chan callOutcome
}

// Client is the protocol engine. It is safe for concurrent use.
type Client struct {
	opts         Options
	logger       logging.Logger
	limiter      *rate.Limiter
	newTransport func() transport.Transport

	mu      sync.Mutex
	state   sessionState
	flight  *initFlight
	tr      transport.Transport
	connID  string
	nextID  uint64
	pending map[uint64]*pendingCall
}

// New creates a client. The server process is not spawned until the first
// call needs it.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Command:        "zkputer-mcp",
		RequestTimeout: DefaultRequestTimeout,
		ClientInfo:     mcp.ClientInfo{Name: "zkputer-go", Version: clientVersion},
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Client{
		opts:    opts,
		logger:  opts.Logger,
		limiter: opts.RateLimit,
		pending: make(map[uint64]*pendingCall),
	}

	c.newTransport = opts.TransportFactory
	if c.newTransport == nil {
		c.newTransport = func() transport.Transport {
			return transport.NewStdio(transport.Config{
				Command:   opts.Command,
				Args:      opts.Args,
				Env:       opts.Env,
				LogStderr: opts.LogServerStderr,
				Logger:    opts.Logger,
			})
		}
	}

	return c
}

// CallTool invokes a named tool on the server. The returned result is never
// accompanied by an error: transport failures, timeouts, a dead process and
// remote errors all become error-flagged results carrying a readable message.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	start := time.Now()

	res, err := c.callTool(ctx, name, args)
	if err != nil {
		c.logger.Debug("tool call failed", "tool", name, "duration", time.Since(start), "error", err.Error())
		return mcp.NewErrorResult(err.Error())
	}

	c.logger.Debug("tool call completed", "tool", name, "duration", time.Since(start), "is_error", res.IsError)
	return res
}

func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	raw, err := c.call(ctx, mcp.MethodCallTool, mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return adaptResult(raw), nil
}

// Call performs the handshake if needed and issues a raw request. Most
// callers want CallTool; Call exposes the full method surface (ping,
// tools/list, future extensions).
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}
	return c.call(ctx, method, params)
}

// Notify sends a fire-and-forget notification. Write failures are swallowed
// by design, mirroring the protocol's best-effort notification semantics.
func (c *Client) Notify(method string, params any) {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()

	if tr == nil {
		return
	}

	frame, err := wire.Encode(wire.NewNotification(method, params))
	if err != nil {
		return
	}
	if err := tr.Write(frame); err != nil {
		c.logger.Debug("notification dropped", "method", method, "error", err.Error())
	}
}

// ListTools fetches the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	raw, err := c.Call(ctx, mcp.MethodListTools, struct{}{})
	if err != nil {
		return nil, err
	}

	var res mcp.ListToolsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return res.Tools, nil
}

// Ping checks end-to-end liveness of the session.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, mcp.MethodPing, struct{}{})
	return err
}

// Close terminates the server process and fails every outstanding request
// with ErrClosed before returning. The client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	tr := c.tr
	c.tr = nil
	orphans := c.takeAllPendingLocked()
	c.mu.Unlock()

	for _, pc := range orphans {
		pc.timer.Stop()
		pc.ch <- callOutcome{err: ErrClosed}
	}

	if tr != nil {
		return tr.Close()
	}
	return nil
}

// ensureReady drives the session state machine to Ready, performing at most
// one handshake no matter how many callers arrive concurrently. A failed
// handshake reverts the state so a later call retries from scratch, and the
// failure propagates to every waiter that joined the attempt.
func (c *Client) ensureReady(ctx context.Context) error {
	for {
		c.mu.Lock()
		switch c.state {
		case stateReady:
			c.mu.Unlock()
			return nil

		case stateClosed:
			c.mu.Unlock()
			return ErrClosed

		case stateInitializing:
			flight := c.flight
			c.mu.Unlock()

			select {
			case <-flight.done:
				if flight.err != nil {
					return flight.err
				}
				// Re-check: the session may have been torn down by a process
				// exit between handshake completion and now.
			case <-ctx.Done():
				return ctx.Err()
			}

		default: // stateUninitialized
			flight := &initFlight{done: make(chan struct{})}
			c.flight = flight
			c.state = stateInitializing
			c.mu.Unlock()

			err := c.initialize(ctx)

			c.mu.Lock()
			if c.state == stateClosed && err == nil {
				// Close won the race against the handshake; the caller must
				// not observe a successful call on a closed client.
				err = ErrClosed
			}
			if c.state == stateInitializing {
				if err != nil {
					c.state = stateUninitialized
				} else {
					c.state = stateReady
				}
			}
			c.mu.Unlock()

			flight.err = err
			close(flight.done)
			return err
		}
	}
}

// initialize performs the handshake: start the process if needed, send the
// initialize request, then confirm with the initialized notification.
func (c *Client) initialize(ctx context.Context) error {
	if err := c.ensureStarted(ctx); err != nil {
		return err
	}

	params := mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    mcp.Capabilities{Tools: &mcp.ToolCapability{}},
		ClientInfo:      c.opts.ClientInfo,
	}

	raw, err := c.call(ctx, mcp.MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize handshake: %w", err)
	}

	var res mcp.InitializeResult
	if err := json.Unmarshal(raw, &res); err == nil && res.ServerInfo.Name != "" {
		c.logger.Info("session ready",
			"server", res.ServerInfo.Name,
			"server_version", res.ServerInfo.Version,
			"protocol", res.ProtocolVersion)
	}

	c.Notify(mcp.NotificationInitialized, struct{}{})
	return nil
}

// ensureStarted is idempotent: a live transport is reused, otherwise a fresh
// process is spawned and its receive loop attached. Request identifiers
// restart at 1 for each process instance; the pending table is always empty
// at that point, so identifiers are never reused within an instance.
func (c *Client) ensureStarted(ctx context.Context) error {
	c.mu.Lock()
	if c.tr != nil && c.tr.Running() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	tr := c.newTransport()
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("start server process: %w", err)
	}

	connID := uuid.NewString()

	c.mu.Lock()
	if c.state == stateClosed {
		// Close ran while the process was being spawned. The new instance
		// must not outlive the client, and must never be installed on it.
		c.mu.Unlock()
		_ = tr.Close()
		return ErrClosed
	}
	c.tr = tr
	c.connID = connID
	c.nextID = 0
	c.mu.Unlock()

	c.logger.Debug("server connection established", "conn_id", connID)
	go c.recvLoop(tr, connID)

	return nil
}

// call sends one request and blocks until a response, timeout, process
// termination or context cancellation settles it.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	tr := c.tr
	if tr == nil || !tr.Running() {
		c.mu.Unlock()
		return nil, ErrNotRunning
	}

	c.nextID++
	id := c.nextID
	timeout := c.opts.RequestTimeout

	pc := &pendingCall{method: method, ch: make(chan callOutcome, 1)}
	pc.timer = time.AfterFunc(timeout, func() {
		c.failPending(id, fmt.Errorf("request %q timed out after %s", method, timeout))
	})
	c.pending[id] = pc
	c.mu.Unlock()

	frame, err := wire.Encode(wire.NewRequest(id, method, params))
	if err != nil {
		c.dropPending(id)
		return nil, err
	}
	if err := tr.Write(frame); err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}

	select {
	case out := <-pc.ch:
		return out.result, out.err
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	}
}

// recvLoop consumes decoded frames from one process instance and routes
// responses to their pending entries. When the stream ends it reaps the exit
// status and tears the session down.
func (c *Client) recvLoop(tr transport.Transport, connID string) {
	for msg := range tr.Frames() {
		switch {
		case msg.IsResponse():
			c.resolve(*msg.ID, msg.Result, msg.Error)
		case msg.Method != "":
			// Server-initiated requests and notifications are not part of
			// the zkputer surface.
			c.logger.Debug("ignoring server message", "method", msg.Method, "conn_id", connID)
		}
	}

	err := <-tr.Exited()
	c.handleExit(tr, err)
}

// resolve settles the pending entry matching id. Responses for unknown or
// already-settled identifiers are ignored without error.
func (c *Client) resolve(id uint64, result json.RawMessage, rpcErr *wire.Error) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	pc.timer.Stop()

	if rpcErr != nil {
		pc.ch <- callOutcome{err: fmt.Errorf("server error: %w", rpcErr)}
		return
	}
	pc.ch <- callOutcome{result: result}
}

// handleExit reacts to termination of one specific process instance: every
// outstanding request fails, the pending table is cleared and the state
// drops back to Uninitialized so the next call respawns and re-initializes.
func (c *Client) handleExit(tr transport.Transport, exitErr error) {
	c.mu.Lock()
	if c.tr != tr {
		// A stale instance; the client already moved on.
		c.mu.Unlock()
		return
	}
	c.tr = nil
	orphans := c.takeAllPendingLocked()
	if c.state != stateClosed {
		c.state = stateUninitialized
	}
	connID := c.connID
	c.mu.Unlock()

	reason := error(ErrProcessExited)
	if exitErr != nil {
		reason = fmt.Errorf("%w: %v", ErrProcessExited, exitErr)
	}
	for _, pc := range orphans {
		pc.timer.Stop()
		pc.ch <- callOutcome{err: reason}
	}

	if len(orphans) > 0 || exitErr != nil {
		c.logger.Warn("server process exited",
			"conn_id", connID,
			"outstanding_requests", len(orphans),
			"error", errString(exitErr))
	}
}

// failPending settles one entry with err. Used by the timeout timer.
func (c *Client) failPending(id uint64, err error) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		pc.ch <- callOutcome{err: err}
	}
}

// dropPending removes an entry without delivering an outcome; the caller is
// reporting its own error.
func (c *Client) dropPending(id uint64) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		pc.timer.Stop()
	}
}

func (c *Client) takeAllPendingLocked() []*pendingCall {
	orphans := make([]*pendingCall, 0, len(c.pending))
	for _, pc := range c.pending {
		orphans = append(orphans, pc)
	}
	c.pending = make(map[uint64]*pendingCall)
	return orphans
}

// adaptResult normalizes a raw tools/call result. A payload that already has
// the content-list shape passes through unchanged; anything else is wrapped
// with the raw value rendered as text and kept as structured content.
func adaptResult(raw json.RawMessage) *mcp.CallToolResult {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}

	var res mcp.CallToolResult
	if err := json.Unmarshal(raw, &res); err == nil && res.Content != nil {
		return &res
	}

	text := string(raw)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err == nil {
		text = pretty.String()
	}

	return &mcp.CallToolResult{
		Content:           []mcp.ContentBlock{mcp.NewTextContent(text)},
		StructuredContent: raw,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
