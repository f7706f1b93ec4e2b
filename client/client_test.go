package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkputer/zkputer-go/client"
	"github.com/zkputer/zkputer-go/internal/testutil"
	"github.com/zkputer/zkputer-go/mcp"
	"github.com/zkputer/zkputer-go/transport"
	"github.com/zkputer/zkputer-go/wire"
)

var verifyTool = mcp.Tool{
	Name:        "zkputer_verify_claim",
	Description: "Verify a truth claim and mint a receipt.",
	InputSchema: map[string]any{"type": "object"},
}

func newFakeClient(handler testutil.Handler, optFns ...func(o *client.Options)) (*client.Client, *testutil.FakeTransport) {
	fake := testutil.NewFakeTransport(handler)
	fns := append([]func(o *client.Options){func(o *client.Options) {
		o.TransportFactory = func() transport.Transport { return fake }
	}}, optFns...)
	return client.New(fns...), fake
}

func TestHandshakeBeforeFirstCall(t *testing.T) {
	handler := testutil.MCPHandler([]mcp.Tool{verifyTool}, func(name string, args map[string]any) (any, *wire.Error) {
		return map[string]any{"receipt_id": "rcpt_1"}, nil
	})
	c, fake := newFakeClient(handler)
	defer c.Close()

	res := c.CallTool(context.Background(), "zkputer_verify_claim", map[string]any{"venue": "hyperliquid"})
	require.False(t, res.IsError, res.Text())

	// The call frame must not precede the initialize exchange.
	assert.Equal(t, []string{
		mcp.MethodInitialize,
		mcp.NotificationInitialized,
		mcp.MethodCallTool,
	}, fake.MethodsSent())

	reqs := fake.Requests()
	require.NotNil(t, reqs[0].ID)
	assert.Equal(t, uint64(1), *reqs[0].ID, "identifiers start at 1 per process instance")
	assert.Nil(t, reqs[1].ID, "initialized is a notification")
}

func TestConcurrentFirstCallsShareOneHandshake(t *testing.T) {
	handler := testutil.MCPHandler(nil, nil)
	c, fake := newFakeClient(handler)
	defer c.Close()

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Ping(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}

	inits := 0
	for _, m := range fake.MethodsSent() {
		if m == mcp.MethodInitialize {
			inits++
		}
	}
	assert.Equal(t, 1, inits)
}

func TestOutOfOrderResponseCorrelation(t *testing.T) {
	// The handler withholds tools/call replies so the test can deliver them
	// in reverse arrival order.
	base := testutil.MCPHandler(nil, nil)
	handler := func(msg wire.Message) *wire.Message {
		if msg.Method == mcp.MethodCallTool {
			return nil
		}
		return base(msg)
	}
	c, fake := newFakeClient(handler)
	defer c.Close()

	require.NoError(t, c.Ping(context.Background()))

	const callers = 3
	var wg sync.WaitGroup
	results := make([]json.RawMessage, callers)
	callErrs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params := mcp.CallToolParams{
				Name:      "zkputer_get_receipt",
				Arguments: map[string]any{"receipt_id": fmt.Sprintf("rcpt_%d", i)},
			}
			results[i], callErrs[i] = c.Call(context.Background(), mcp.MethodCallTool, params)
		}(i)
	}

	require.Eventually(t, func() bool {
		return len(pendingCalls(fake)) == callers
	}, time.Second, time.Millisecond)

	// Echo each request's params back as its result, newest first.
	reqs := pendingCalls(fake)
	for i := len(reqs) - 1; i >= 0; i-- {
		fake.Deliver(*testutil.Reply(*reqs[i].ID, reqs[i].Params))
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, callErrs[i])
		var params mcp.CallToolParams
		require.NoError(t, json.Unmarshal(results[i], &params))
		assert.Equal(t, fmt.Sprintf("rcpt_%d", i), params.Arguments["receipt_id"],
			"caller %d must receive the response matching its own identifier", i)
	}
}

func TestTimeoutWithoutLateResolution(t *testing.T) {
	var pings atomic.Int64
	base := testutil.MCPHandler(nil, nil)
	handler := func(msg wire.Message) *wire.Message {
		if msg.Method == mcp.MethodPing && pings.Add(1) == 1 {
			return nil // let the first ping time out
		}
		return base(msg)
	}
	c, fake := newFakeClient(handler, func(o *client.Options) {
		o.RequestTimeout = 30 * time.Millisecond
	})
	defer c.Close()

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	// A late response for the timed-out identifier must be ignored, not
	// misdelivered to a later request.
	reqs := fake.Requests()
	lateID := *reqs[len(reqs)-1].ID
	fake.Deliver(*testutil.Reply(lateID, map[string]any{"stale": true}))

	assert.NoError(t, c.Ping(context.Background()))
}

func TestProcessExitFailsPendingAndRespawns(t *testing.T) {
	// First instance answers the handshake, then dies while a ping is in
	// flight. Second instance behaves normally.
	base := testutil.MCPHandler(nil, nil)
	silentPing := func(msg wire.Message) *wire.Message {
		if msg.Method == mcp.MethodPing {
			return nil
		}
		return base(msg)
	}
	first := testutil.NewFakeTransport(silentPing)
	second := testutil.NewFakeTransport(base)

	spawned := 0
	c := client.New(func(o *client.Options) {
		o.TransportFactory = func() transport.Transport {
			spawned++
			if spawned == 1 {
				return first
			}
			return second
		}
	})
	defer c.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Ping(context.Background()) }()

	require.Eventually(t, func() bool {
		for _, m := range first.MethodsSent() {
			if m == mcp.MethodPing {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	first.Exit(errors.New("signal: killed"))

	err := <-errCh
	require.ErrorIs(t, err, client.ErrProcessExited)
	assert.Contains(t, err.Error(), "signal: killed")

	// The next call spawns a fresh process and performs a fresh handshake
	// with identifiers restarting at 1.
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 2, spawned)

	reqs := second.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, mcp.MethodInitialize, reqs[0].Method)
	require.NotNil(t, reqs[0].ID)
	assert.Equal(t, uint64(1), *reqs[0].ID)
}

func TestCallToolNeverReturnsWireErrors(t *testing.T) {
	t.Run("spawn failure", func(t *testing.T) {
		fake := testutil.NewFakeTransport(nil)
		fake.StartErr = errors.New("exec: \"zkputer-mcp\": executable file not found in $PATH")
		c := client.New(func(o *client.Options) {
			o.TransportFactory = func() transport.Transport { return fake }
		})
		defer c.Close()

		res := c.CallTool(context.Background(), "zkputer_verify_claim", nil)
		require.True(t, res.IsError)
		assert.Contains(t, res.Text(), "executable file not found")
	})

	t.Run("server-side protocol error", func(t *testing.T) {
		handler := testutil.MCPHandler(nil, func(name string, args map[string]any) (any, *wire.Error) {
			return nil, &wire.Error{Code: -32000, Message: "receipt not found"}
		})
		c, _ := newFakeClient(handler)
		defer c.Close()

		res := c.CallTool(context.Background(), "zkputer_get_receipt", map[string]any{"receipt_id": "nope"})
		require.True(t, res.IsError)
		assert.Contains(t, res.Text(), "receipt not found")
	})

	t.Run("nil arguments sent as empty object", func(t *testing.T) {
		var gotArgs map[string]any
		handler := testutil.MCPHandler(nil, func(name string, args map[string]any) (any, *wire.Error) {
			gotArgs = args
			return map[string]any{"ok": true}, nil
		})
		c, _ := newFakeClient(handler)
		defer c.Close()

		res := c.CallTool(context.Background(), "zkputer_verify_claim", nil)
		require.False(t, res.IsError, res.Text())
		assert.NotNil(t, gotArgs)
		assert.Empty(t, gotArgs)
	})
}

func TestCallToolAdaptsBareResults(t *testing.T) {
	handler := testutil.MCPHandler(nil, func(name string, args map[string]any) (any, *wire.Error) {
		// A bare domain object, not the content-list shape.
		return map[string]any{"receipt_id": "rcpt_9", "status": "PROVED"}, nil
	})
	c, _ := newFakeClient(handler)
	defer c.Close()

	res := c.CallTool(context.Background(), "zkputer_get_receipt", map[string]any{"receipt_id": "rcpt_9"})
	require.False(t, res.IsError)
	assert.JSONEq(t, `{"receipt_id":"rcpt_9","status":"PROVED"}`, string(res.StructuredContent))
	require.Len(t, res.Content, 1)
	assert.Contains(t, res.Content[0].Text, `"status": "PROVED"`)
}

func TestCallToolPassesContentShapeThrough(t *testing.T) {
	handler := testutil.MCPHandler(nil, func(name string, args map[string]any) (any, *wire.Error) {
		return mcp.CallToolResult{Content: []mcp.ContentBlock{mcp.NewTextContent("receipt minted")}}, nil
	})
	c, _ := newFakeClient(handler)
	defer c.Close()

	res := c.CallTool(context.Background(), "zkputer_verify_claim", map[string]any{})
	require.False(t, res.IsError)
	assert.Equal(t, "receipt minted", res.Text())
	assert.Nil(t, res.StructuredContent)
}

func TestListToolsAndPing(t *testing.T) {
	handler := testutil.MCPHandler([]mcp.Tool{verifyTool}, nil)
	c, _ := newFakeClient(handler)
	defer c.Close()

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "zkputer_verify_claim", tools[0].Name)

	assert.NoError(t, c.Ping(context.Background()))
}

func TestHandshakeFailureRetriesFromScratch(t *testing.T) {
	var inits atomic.Int64
	base := testutil.MCPHandler(nil, nil)
	handler := func(msg wire.Message) *wire.Message {
		if msg.Method == mcp.MethodInitialize && inits.Add(1) == 1 {
			return testutil.ReplyError(*msg.ID, -32600, "unsupported protocol version")
		}
		return base(msg)
	}
	c, _ := newFakeClient(handler)
	defer c.Close()

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize handshake")
	assert.Contains(t, err.Error(), "unsupported protocol version")

	// The failed attempt reverted the session; the next call retries and the
	// handshake now succeeds.
	assert.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, int64(2), inits.Load())
}

func TestCloseFailsPendingAndRejectsFurtherCalls(t *testing.T) {
	base := testutil.MCPHandler(nil, nil)
	handler := func(msg wire.Message) *wire.Message {
		if msg.Method == mcp.MethodPing {
			return nil
		}
		return base(msg)
	}
	c, fake := newFakeClient(handler)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Ping(context.Background()) }()

	require.Eventually(t, func() bool {
		for _, m := range fake.MethodsSent() {
			if m == mcp.MethodPing {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-errCh, client.ErrClosed)

	assert.ErrorIs(t, c.Ping(context.Background()), client.ErrClosed)
	res := c.CallTool(context.Background(), "zkputer_verify_claim", nil)
	assert.True(t, res.IsError)

	// Close is idempotent.
	assert.NoError(t, c.Close())
}

// gatedTransport holds Start until released, so tests can interleave Close
// with an in-progress spawn deterministically.
type gatedTransport struct {
	*testutil.FakeTransport
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTransport) Start(ctx context.Context) error {
	close(g.entered)
	<-g.release
	return g.FakeTransport.Start(ctx)
}

func TestCloseDuringSpawnDoesNotLeakProcess(t *testing.T) {
	fake := testutil.NewFakeTransport(testutil.MCPHandler(nil, nil))
	gated := &gatedTransport{
		FakeTransport: fake,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	c := client.New(func(o *client.Options) {
		o.TransportFactory = func() transport.Transport { return gated }
	})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Ping(context.Background()) }()

	// Close while the spawn is still in flight, then let it finish.
	<-gated.entered
	require.NoError(t, c.Close())
	close(gated.release)

	// The racing call must not complete against the orphaned instance, and
	// the instance spawned during the Close window must not be left running.
	assert.ErrorIs(t, <-errCh, client.ErrClosed)
	assert.False(t, fake.Running())
}

func TestCloseDuringHandshakeFailsTheCaller(t *testing.T) {
	// The handshake response arrives, but Close settles the session before
	// the flight owner publishes readiness.
	base := testutil.MCPHandler(nil, nil)
	handler := func(msg wire.Message) *wire.Message {
		if msg.Method == mcp.MethodInitialize {
			return nil // withhold so Close wins the race
		}
		return base(msg)
	}
	c, fake := newFakeClient(handler)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Ping(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(fake.MethodsSent()) > 0
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-errCh, client.ErrClosed)
}

func TestContextCancellationAbandonsCall(t *testing.T) {
	base := testutil.MCPHandler(nil, nil)
	handler := func(msg wire.Message) *wire.Message {
		if msg.Method == mcp.MethodPing {
			return nil
		}
		return base(msg)
	}
	c, _ := newFakeClient(handler)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// pendingCalls returns the tools/call frames the client has written.
func pendingCalls(fake *testutil.FakeTransport) []wire.Message {
	var out []wire.Message
	for _, req := range fake.Requests() {
		if req.Method == mcp.MethodCallTool {
			out = append(out, req)
		}
	}
	return out
}
