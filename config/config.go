package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ServerConfig describes how to launch one server process.
type ServerConfig struct {
	// Command is the server executable.
	Command string `json:"command"`

	// Args are passed to the executable verbatim.
	Args []string `json:"args,omitempty"`

	// Env entries overlay the inherited environment. Values may reference
	// host variables as ${VAR}; references are expanded at load time.
	Env map[string]string `json:"env,omitempty"`

	// TimeoutMS is the per-request timeout in milliseconds. Zero means the
	// client default.
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

// Timeout converts TimeoutMS to a duration, zero when unset.
func (sc ServerConfig) Timeout() time.Duration {
	return time.Duration(sc.TimeoutMS) * time.Millisecond
}

// File is a parsed server configuration file.
type File struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// Load reads and parses a configuration file, expanding ${VAR} references
// in environment overlay values.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for name, sc := range f.Servers {
		if len(sc.Env) == 0 {
			continue
		}
		expanded := make(map[string]string, len(sc.Env))
		for k, v := range sc.Env {
			expanded[k] = os.Expand(v, os.Getenv)
		}
		sc.Env = expanded
		f.Servers[name] = sc
	}

	return &f, nil
}

// Server returns the named server definition.
func (f *File) Server(name string) (ServerConfig, error) {
	sc, ok := f.Servers[name]
	if !ok {
		return ServerConfig{}, fmt.Errorf("config: server %q not defined", name)
	}
	if sc.Command == "" {
		return ServerConfig{}, fmt.Errorf("config: server %q has no command", name)
	}
	return sc, nil
}
