// Package transport owns the server process boundary. The Stdio transport
// spawns the zkputer verification server as a child process, writes framed
// messages to its standard input, decodes its standard output through a
// wire.Decoder and surfaces process exit as an event the client reacts to.
// Standard error is drained and discarded by default; an option routes it to
// the logger for diagnostics instead.
//
// A Stdio value manages exactly one process instance. The client constructs
// a fresh transport whenever a call finds no live process, which is how a
// crashed server is respawned transparently.
package transport
