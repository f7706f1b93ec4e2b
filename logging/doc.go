// Package logging provides a minimal logging interface and adapters for the
// zkputer client.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the protocol engine uses for observability. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (the client default)
//   - ProtocolLogger with connection/component context and domain helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelDebug, "text", false)
//	c := client.New(func(o *client.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
