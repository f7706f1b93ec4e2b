// Package client implements the protocol engine that talks to the zkputer
// verification server over a stdio transport. It multiplexes concurrent
// requests onto the single process pipe (monotonic identifiers, pending
// table, per-request timeouts), performs the one-time initialize handshake
// before any application call, and normalizes every tool-call outcome into a
// uniform result shape that never surfaces as a Go error at the boundary.
//
// Concurrency model: many goroutines may call into a Client at once. Each
// request gets its own identifier and completion channel, so requests are
// pipelined and responses are correlated strictly by identifier, never by
// arrival order. Initialization is the single serialization point: callers
// that arrive before the session is ready share one in-flight handshake.
package client
