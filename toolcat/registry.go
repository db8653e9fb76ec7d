// Package toolcat is the static catalog of tools an orchestration agent may
// invoke: one entry per tool name, carrying the dispatch metadata the tool
// dispatcher (package dispatch) needs to classify and route calls, and the
// documentation the LLM prompt assembler needs to describe the tool to the
// model.
package toolcat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/strix-run/orchestrator/agent"
)

// Handler executes a tool call that does not need the calling agent's run
// state.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// StatefulHandler executes a tool call that needs read/write access to the
// calling agent's state (mailbox waits, graph mutations, finish gates).
type StatefulHandler func(ctx context.Context, state *agent.State, args map[string]any) (any, error)

// ArgSpec documents one parameter for prompt assembly.
type ArgSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Spec is one tool's registration: its documentation and exactly one of
// Handler or StatefulHandler, selected by NeedsAgentState.
type Spec struct {
	Name        string
	Description string
	Args        []ArgSpec

	// RunsInSandbox routes the call through the sandbox HTTP adapter
	// instead of executing Handler/StatefulHandler locally.
	RunsInSandbox bool

	// Parallelizable marks the tool safe to run concurrently with other
	// parallelizable tools in the same wave.
	Parallelizable bool

	// NeedsAgentState selects StatefulHandler over Handler.
	NeedsAgentState bool

	Handler         Handler
	StatefulHandler StatefulHandler
}

// Catalog is a thread-safe tool registration table.
type Catalog struct {
	mu   sync.RWMutex
	tbl  map[string]Spec
}

// New constructs an empty catalog.
func New() *Catalog {
	return &Catalog{tbl: make(map[string]Spec)}
}

// Register adds or replaces a tool's spec. It panics on a spec with no
// name, or with no handler for its NeedsAgentState mode unless it
// RunsInSandbox, since that can only be a programming error at
// startup, never a runtime condition to recover from.
func (c *Catalog) Register(spec Spec) {
	if spec.Name == "" {
		panic("toolcat: Register called with empty tool name")
	}
	if spec.NeedsAgentState && spec.StatefulHandler == nil && !spec.RunsInSandbox {
		panic(fmt.Sprintf("toolcat: tool %q needs agent state but has no StatefulHandler", spec.Name))
	}
	if !spec.NeedsAgentState && spec.Handler == nil && !spec.RunsInSandbox {
		panic(fmt.Sprintf("toolcat: tool %q has no Handler", spec.Name))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tbl[spec.Name] = spec
}

// Lookup returns the spec registered for name.
func (c *Catalog) Lookup(name string) (Spec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.tbl[name]
	return s, ok
}

// Names returns every registered tool name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tbl))
	for n := range c.tbl {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// All returns every registered spec, sorted by name.
func (c *Catalog) All() []Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tbl))
	for n := range c.tbl {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Spec, len(names))
	for i, n := range names {
		out[i] = c.tbl[n]
	}
	return out
}
