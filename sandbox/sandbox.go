// Package sandbox defines the interface an orchestration agent uses to
// acquire an isolated execution environment for tools marked
// RunsInSandbox, and an in-memory fake for tests. The concrete container
// runtime (Docker, firecracker, or otherwise) is out of scope: this
// package only commits to the create/resolve/destroy contract the
// dispatcher and scan controller depend on.
package sandbox

import (
	"context"
	"fmt"
	"sync"
)

// Handle identifies one running sandbox instance.
type Handle struct {
	ID    string
	URL   string
	Token string
}

// Adapter creates, resolves, and tears down sandbox instances on behalf of
// agents. Implementations must be safe for concurrent use: multiple agents
// may request sandboxes at once.
type Adapter interface {
	// CreateSandbox provisions a new sandbox for agentID and returns its
	// handle. Called lazily, on the agent's first RunsInSandbox tool call.
	CreateSandbox(ctx context.Context, agentID string) (Handle, error)

	// GetSandboxURL returns the reachable base URL for agentID's sandbox.
	// Returns an error if no sandbox has been created for that agent yet.
	GetSandboxURL(ctx context.Context, agentID string) (string, error)

	// DestroySandbox tears down agentID's sandbox and releases its
	// resources. A no-op if no sandbox exists for that agent.
	DestroySandbox(ctx context.Context, agentID string) error
}

// inMemory is a test fake: it never talks to a real container runtime, it
// just hands back a synthesized loopback handle, one per agent.
type inMemory struct {
	mu       sync.Mutex
	handles  map[string]Handle
	nextPort int
}

// NewInMemory constructs a sandbox.Adapter fake for tests: CreateSandbox
// fabricates a loopback handle instead of starting a container.
func NewInMemory() Adapter {
	return &inMemory{handles: make(map[string]Handle), nextPort: 9000}
}

func (f *inMemory) CreateSandbox(ctx context.Context, agentID string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.handles[agentID]; ok {
		return h, nil
	}
	f.nextPort++
	h := Handle{
		ID:    fmt.Sprintf("sandbox_%s", agentID),
		URL:   fmt.Sprintf("http://127.0.0.1:%d", f.nextPort),
		Token: fmt.Sprintf("test-token-%s", agentID),
	}
	f.handles[agentID] = h
	return h, nil
}

func (f *inMemory) GetSandboxURL(ctx context.Context, agentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handles[agentID]
	if !ok {
		return "", fmt.Errorf("sandbox: no sandbox for agent %s", agentID)
	}
	return h.URL, nil
}

func (f *inMemory) DestroySandbox(ctx context.Context, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handles, agentID)
	return nil
}

// Transport adapts an Adapter to dispatch.SandboxTransport, lazily
// creating a sandbox on first use.
type Transport struct {
	Adapter Adapter
}

// URLFor implements dispatch.SandboxTransport.
func (t *Transport) URLFor(ctx context.Context, agentID string) (string, error) {
	url, err := t.Adapter.GetSandboxURL(ctx, agentID)
	if err == nil {
		return url, nil
	}
	h, err := t.Adapter.CreateSandbox(ctx, agentID)
	if err != nil {
		return "", err
	}
	return h.URL, nil
}

// BearerToken implements dispatch.SandboxTransport.
func (t *Transport) BearerToken(ctx context.Context, agentID string) (string, error) {
	h, err := t.Adapter.CreateSandbox(ctx, agentID)
	if err != nil {
		return "", err
	}
	return h.Token, nil
}
