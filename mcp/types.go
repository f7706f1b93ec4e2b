package mcp

import (
	"encoding/json"
	"strings"
)

// ProtocolVersion is the MCP protocol revision negotiated during the
// initialize handshake.
const ProtocolVersion = "2024-11-05"

// Method names understood by the server.
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodListTools  = "tools/list"
	MethodCallTool   = "tools/call"

	// NotificationInitialized completes the handshake. It is fire-and-forget.
	NotificationInitialized = "notifications/initialized"
)

// ClientInfo identifies the connecting client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the server in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolCapability declares tool-call support. The MCP schema reserves room
// for flags here; the zkputer server accepts an empty object.
type ToolCapability struct{}

// Capabilities declares which protocol features a party supports.
type Capabilities struct {
	Tools *ToolCapability `json:"tools,omitempty"`
}

// InitializeParams is the payload of the one-time initialize request.
type InitializeParams struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ClientInfo      ClientInfo   `json:"clientInfo"`
}

// InitializeResult is the server's half of the handshake.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Tool describes one operation the server exposes, including the JSON schema
// of its arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListToolsResult is the result of a tools/list request.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams is the parameter object of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ContentBlock is one displayable segment of a tool result. The zkputer
// server only emits text blocks.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewTextContent builds a text content block.
func NewTextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// CallToolResult is the uniform outcome of a tool invocation. Every failure
// path, local or remote, is represented as a result with IsError set rather
// than an error value, so the boundary caller never has to distinguish
// transport failures from tool failures.
type CallToolResult struct {
	Content           []ContentBlock  `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// NewErrorResult wraps a human-readable failure message as an error-flagged
// result.
func NewErrorResult(msg string) *CallToolResult {
	return &CallToolResult{
		Content: []ContentBlock{NewTextContent(msg)},
		IsError: true,
	}
}

// Text concatenates all text blocks of the result.
func (r *CallToolResult) Text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(block.Text)
	}
	return sb.String()
}
