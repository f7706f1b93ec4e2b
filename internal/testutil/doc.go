// Package testutil contains helpers used across tests to exercise the
// protocol engine without spawning real processes: an in-memory fake
// transport with scripted responses and a minimal in-process rendition of
// the verification server's method surface. These helpers are intentionally
// minimal and are not intended for production usage.
package testutil
