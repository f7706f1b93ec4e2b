// Package tool bridges the verification server's remote tools to LLM
// function-calling loops. A Toolbox lists the tools the server exposes and
// wraps each as a ServerTool with schema validated arguments and consistent
// error handling, so agent frameworks and LLM SDKs can treat remote
// verification operations like any local function tool.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zkputer/zkputer-go/internal/util"
	"github.com/zkputer/zkputer-go/mcp"
)

// Caller is the slice of the protocol client the bridge needs. The client
// package's Client satisfies it.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

// ValidationError represents argument validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during remote tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// ServerTool exposes one remote tool with the Name/Description/Parameters/
// Call shape LLM integrations expect. Arguments are validated against the
// schema the server declared before the call crosses the process boundary.
//
// A ServerTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type ServerTool struct {
	caller Caller
	tool   mcp.Tool
}

// NewServerTool wraps a remote tool descriptor.
func NewServerTool(caller Caller, t mcp.Tool) *ServerTool {
	return &ServerTool{caller: caller, tool: t}
}

// Name returns the remote tool's identifier.
func (t *ServerTool) Name() string { return t.tool.Name }

// Description returns the server-provided description shown to models.
func (t *ServerTool) Description() string { return t.tool.Description }

// Parameters returns the JSON schema the server declared for the tool's
// arguments.
func (t *ServerTool) Parameters() map[string]any { return t.tool.InputSchema }

// Call validates args against the declared schema and invokes the remote
// tool. Error-flagged results come back as *ToolError; successful results
// are the structured content when present, otherwise the concatenated text.
func (t *ServerTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if t.tool.InputSchema != nil {
		if err := util.ValidateParameters(args, t.tool.InputSchema); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return nil, NewToolError(t.tool.Name, verr.Error(), "VALIDATION_ERROR")
			}
			return nil, err
		}
	}

	res := t.caller.CallTool(ctx, t.tool.Name, args)
	if res.IsError {
		return nil, NewToolError(t.tool.Name, res.Text(), "EXECUTION_ERROR")
	}

	if len(res.StructuredContent) > 0 {
		var structured any
		if err := json.Unmarshal(res.StructuredContent, &structured); err == nil {
			return structured, nil
		}
	}
	return res.Text(), nil
}
