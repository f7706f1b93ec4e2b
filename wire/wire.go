package wire

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version carried by every message.
const Version = "2.0"

// Error is a JSON-RPC error object returned by the server. It implements the
// error interface so remote failures can be propagated directly.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error returns the server-provided message.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return e.Message
}

// Message is the JSON-RPC 2.0 envelope used in both directions. Requests
// carry ID, Method and Params; responses carry ID and either Result or Error;
// notifications carry Method and Params and omit ID.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewRequest builds a request message with the given identifier.
func NewRequest(id uint64, method string, params any) Message {
	return Message{JSONRPC: Version, ID: &id, Method: method, Params: params}
}

// NewNotification builds a fire-and-forget message without an identifier.
func NewNotification(method string, params any) Message {
	return Message{JSONRPC: Version, Method: method, Params: params}
}

// IsResponse reports whether the message correlates to an outstanding
// request: it carries an identifier and no method of its own.
func (m Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}
