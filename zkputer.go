// Package zkputer provides a typed Go client for the zkputer MCP
// verification server. The server runs as a child process and speaks a
// length-prefixed JSON-RPC protocol over stdio; this package hides the
// process lifecycle, handshake and request multiplexing behind two typed
// operations. Most applications interact with it by:
//  1. Creating a Client via New() (or NewFromConfig() for file-driven setup)
//  2. Calling VerifyClaim / GetReceipt, which map onto the server's tools
//  3. Optionally checking returned receipts locally with the receipt package
//
// The façade delegates protocol mechanics to client.Client while keeping
// setup and usage ergonomics concise. Defaults are safe for local
// development; production deployments typically supply a structured logger
// and an explicit server command.
package zkputer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/zkputer/zkputer-go/client"
	"github.com/zkputer/zkputer-go/config"
	"github.com/zkputer/zkputer-go/logging"
	"github.com/zkputer/zkputer-go/mcp"
	"github.com/zkputer/zkputer-go/receipt"
)

// Tool names exposed by the verification server.
const (
	ToolVerifyClaim = "zkputer_verify_claim"
	ToolGetReceipt  = "zkputer_get_receipt"
)

// Options configures the Client.
type Options struct {
	// Command is the server executable. Defaults to "zkputer-mcp" on PATH.
	Command string

	// Args are passed to the server executable verbatim.
	Args []string

	// Env entries overlay the server process environment.
	Env map[string]string

	// RequestTimeout bounds every request/response exchange.
	RequestTimeout time.Duration

	// Logger receives protocol diagnostics (defaults to NoOp logger if nil).
	Logger logging.Logger

	// LogServerStderr surfaces the server's stderr through the logger.
	LogServerStderr bool

	// RateLimit throttles tool calls when set.
	RateLimit *rate.Limiter

	// Engine overrides the underlying protocol client. Tests use this to
	// inject a client wired to a fake transport.
	Engine *client.Client
}

// Client is the high-level façade over the protocol engine.
type Client struct {
	engine *client.Client
}

// New creates a Client with optional overrides.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Command:        "zkputer-mcp",
		RequestTimeout: client.DefaultRequestTimeout,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	engine := opts.Engine
	if engine == nil {
		engine = client.New(func(o *client.Options) {
			o.Command = opts.Command
			o.Args = opts.Args
			o.Env = opts.Env
			o.RequestTimeout = opts.RequestTimeout
			o.Logger = opts.Logger
			o.LogServerStderr = opts.LogServerStderr
			o.RateLimit = opts.RateLimit
		})
	}

	return &Client{engine: engine}
}

// NewFromConfig builds a Client from a named server entry in an
// mcpservers.json-style file. Explicit option functions are applied after
// the file so code can still override file values.
func NewFromConfig(path, serverName string, optFns ...func(o *Options)) (*Client, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	sc, err := f.Server(serverName)
	if err != nil {
		return nil, err
	}

	fns := make([]func(o *Options), 0, len(optFns)+1)
	fns = append(fns, func(o *Options) {
		o.Command = sc.Command
		o.Args = sc.Args
		o.Env = sc.Env
		if t := sc.Timeout(); t > 0 {
			o.RequestTimeout = t
		}
	})
	fns = append(fns, optFns...)

	return New(fns...), nil
}

// Engine exposes the underlying protocol client for callers that need the
// raw CallTool / Call surface (the tool bridge, the CLI).
func (c *Client) Engine() *client.Client {
	return c.engine
}

// VerifyClaimRequest describes a claim submission.
type VerifyClaimRequest struct {
	Venue      receipt.Venue
	ClaimType  receipt.ClaimType
	AccountRef string
	OrderRef   string

	// ExecutionRef is required for TRADE_EXECUTED claims.
	ExecutionRef string

	// NoWait submits the claim without waiting for the proving pipeline; the
	// returned receipt is typically still PENDING.
	NoWait bool

	// WaitTimeout bounds server-side waiting for a terminal receipt. Zero
	// means the server default.
	WaitTimeout time.Duration
}

func (r VerifyClaimRequest) arguments() map[string]any {
	args := map[string]any{
		"venue":       string(r.Venue),
		"claim_type":  string(r.ClaimType),
		"account_ref": r.AccountRef,
		"order_ref":   r.OrderRef,
	}
	if r.ExecutionRef != "" {
		args["execution_ref"] = r.ExecutionRef
	}
	if r.NoWait {
		args["wait_for_result"] = false
	}
	if r.WaitTimeout > 0 {
		args["wait_timeout_ms"] = r.WaitTimeout.Milliseconds()
	}
	return args
}

// VerifyClaim submits a claim for verification and returns the resulting
// receipt. Unlike the engine's CallTool, failures surface as Go errors here;
// the typed layer is meant for programs, not protocol boundaries.
func (c *Client) VerifyClaim(ctx context.Context, req VerifyClaimRequest) (*receipt.Receipt, error) {
	res := c.engine.CallTool(ctx, ToolVerifyClaim, req.arguments())
	return decodeReceipt(ToolVerifyClaim, res)
}

// GetReceipt fetches a previously created receipt by id.
func (c *Client) GetReceipt(ctx context.Context, receiptID string) (*receipt.Receipt, error) {
	res := c.engine.CallTool(ctx, ToolGetReceipt, map[string]any{"receipt_id": receiptID})
	return decodeReceipt(ToolGetReceipt, res)
}

// ListTools returns the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.engine.ListTools(ctx)
}

// Ping checks end-to-end liveness of the session.
func (c *Client) Ping(ctx context.Context) error {
	return c.engine.Ping(ctx)
}

// Close terminates the server process and fails outstanding work.
func (c *Client) Close() error {
	return c.engine.Close()
}

// decodeReceipt extracts a typed receipt from a tool result. The server
// attaches the receipt as structured content; older builds only emit the
// pretty-printed text block, which is tried as a fallback.
func decodeReceipt(toolName string, res *mcp.CallToolResult) (*receipt.Receipt, error) {
	if res.IsError {
		return nil, fmt.Errorf("%s: %s", toolName, res.Text())
	}

	payload := []byte(res.StructuredContent)
	if len(payload) == 0 {
		payload = []byte(res.Text())
	}

	var r receipt.Receipt
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("%s: decode receipt: %w", toolName, err)
	}
	if r.ReceiptID == "" {
		return nil, fmt.Errorf("%s: result carries no receipt", toolName)
	}
	return &r, nil
}
