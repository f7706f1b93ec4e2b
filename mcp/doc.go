// Package mcp defines the protocol-level vocabulary spoken between the
// client and the zkputer verification server: method names, handshake
// payloads, tool descriptors and the normalized tool-call result shape.
// The types mirror the 2024-11-05 MCP schema subset the server implements.
package mcp
