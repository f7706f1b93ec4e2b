package tool

import (
	"context"
	"fmt"
)

// Toolbox is a snapshot of the server's tool catalog with each entry wrapped
// as a ServerTool. The catalog is fetched once; the zkputer server's tool
// set is static for the lifetime of a process.
type Toolbox struct {
	tools  []*ServerTool
	byName map[string]*ServerTool
}

// NewToolbox lists the server's tools and wraps them.
func NewToolbox(ctx context.Context, caller Caller) (*Toolbox, error) {
	descriptors, err := caller.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("tool: list server tools: %w", err)
	}

	tb := &Toolbox{byName: make(map[string]*ServerTool, len(descriptors))}
	for _, d := range descriptors {
		st := NewServerTool(caller, d)
		tb.tools = append(tb.tools, st)
		tb.byName[d.Name] = st
	}
	return tb, nil
}

// Tools returns every wrapped tool in catalog order.
func (tb *Toolbox) Tools() []*ServerTool {
	out := make([]*ServerTool, len(tb.tools))
	copy(out, tb.tools)
	return out
}

// Get returns the named tool, or nil when the server does not expose it.
func (tb *Toolbox) Get(name string) *ServerTool {
	return tb.byName[name]
}
