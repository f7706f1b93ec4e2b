// Package config loads server definitions from an mcpservers.json-style
// configuration file, so applications can describe how to launch the
// verification server (command, arguments, environment overlay, request
// timeout) outside of code. Environment overlay values support ${VAR}
// expansion against the host environment.
package config
