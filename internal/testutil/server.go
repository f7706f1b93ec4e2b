package testutil

import (
	"encoding/json"

	"github.com/zkputer/zkputer-go/mcp"
	"github.com/zkputer/zkputer-go/wire"
)

// Reply builds a success response for the given request id.
func Reply(id uint64, result any) *wire.Message {
	raw, _ := json.Marshal(result)
	return &wire.Message{JSONRPC: wire.Version, ID: &id, Result: raw}
}

// ReplyError builds an error response for the given request id.
func ReplyError(id uint64, code int, message string) *wire.Message {
	return &wire.Message{JSONRPC: wire.Version, ID: &id, Error: &wire.Error{Code: code, Message: message}}
}

// DecodeParams remarshals a message's params into out. Params arrive as
// generic JSON values after decoding; this converts them to a typed view.
func DecodeParams(msg wire.Message, out any) error {
	raw, err := json.Marshal(msg.Params)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// ToolCallFunc produces the result (or protocol error) of one tools/call.
type ToolCallFunc func(name string, args map[string]any) (any, *wire.Error)

// MCPHandler returns a Handler that speaks the verification server's method
// surface: initialize, ping, tools/list and tools/call. Notifications are
// consumed silently. Unknown methods get a method-not-found error, matching
// the real server.
func MCPHandler(tools []mcp.Tool, onCall ToolCallFunc) Handler {
	return func(msg wire.Message) *wire.Message {
		if msg.ID == nil {
			return nil // notification
		}
		id := *msg.ID

		switch msg.Method {
		case mcp.MethodInitialize:
			return Reply(id, mcp.InitializeResult{
				ProtocolVersion: mcp.ProtocolVersion,
				Capabilities:    mcp.Capabilities{Tools: &mcp.ToolCapability{}},
				ServerInfo:      mcp.ServerInfo{Name: "zkputer-mcp", Version: "0.1.0"},
			})

		case mcp.MethodPing:
			return Reply(id, struct{}{})

		case mcp.MethodListTools:
			return Reply(id, mcp.ListToolsResult{Tools: tools})

		case mcp.MethodCallTool:
			var params mcp.CallToolParams
			if err := DecodeParams(msg, &params); err != nil {
				return ReplyError(id, -32602, "invalid tools/call params")
			}
			if onCall == nil {
				return ReplyError(id, -32000, "no tool handler installed")
			}
			result, rpcErr := onCall(params.Name, params.Arguments)
			if rpcErr != nil {
				return &wire.Message{JSONRPC: wire.Version, ID: &id, Error: rpcErr}
			}
			return Reply(id, result)

		default:
			return ReplyError(id, -32601, "Method not found: "+msg.Method)
		}
	}
}
