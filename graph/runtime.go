package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/strix-run/orchestrator/agent"
	"github.com/strix-run/orchestrator/registry"
)

// discoveryTimeout bounds each best-effort Register/Deregister call against
// an optional registry.Registry, so a slow or unreachable etcd cluster
// never stalls a graph mutation.
const discoveryTimeout = 3 * time.Second

// EdgeType classifies a directed edge in the agent graph.
type EdgeType string

const (
	// EdgeDelegation connects a parent to a child it spawned via
	// CreateAgent. Delegation edges are acyclic by construction: an agent
	// can only ever gain one parent, at creation time.
	EdgeDelegation EdgeType = "delegation"

	// EdgeMessage connects sender to recipient for a SendMessage call.
	EdgeMessage EdgeType = "message"

	// EdgeSpawnedVerification connects a reporting agent to the verifier
	// spawned on its behalf.
	EdgeSpawnedVerification EdgeType = "spawned_verification"
)

// Edge is one recorded interaction between two agents.
type Edge struct {
	From      string
	To        string
	Type      EdgeType
	Timestamp time.Time
}

// Node is one agent's entry in the graph: identity, type, parentage, and a
// live pointer to its run state for status queries.
type Node struct {
	AgentID   string
	AgentName string
	AgentType string
	ParentID  string
	State     *agent.State
	CreatedAt time.Time
}

// Runtime is the process-global agent graph and mailbox registry. A single
// Runtime instance is shared by every agent in a scan; all of its methods
// take the same mutex, so no two graph mutations ever interleave.
type Runtime struct {
	mu          sync.Mutex
	nodes       map[string]*Node
	children    map[string][]string
	edges       []Edge
	mailboxes   map[string]*Mailbox
	rootAgentID string

	// discovery, when set, publishes every registered agent as a
	// registry.ServiceInfo so a multi-process deployment's other components
	// can discover live agents the same way the teacher's tool/plugin
	// servers discover each other (see registry/registry.go). Registration
	// is best-effort: a discovery failure never blocks or fails the graph
	// mutation that triggered it.
	discovery       registry.Registry
	discoveryLeases map[string]registry.ServiceInfo
}

// NewRuntime constructs an empty agent graph with no service discovery.
func NewRuntime() *Runtime {
	return &Runtime{
		nodes:     make(map[string]*Node),
		children:  make(map[string][]string),
		mailboxes: make(map[string]*Mailbox),
	}
}

// NewRuntimeWithDiscovery constructs an agent graph that additionally
// registers and deregisters every agent it creates against d, so other
// processes in a distributed deployment can discover this scan's live
// agents via registry.Registry.DiscoverAll(ctx, "agent").
func NewRuntimeWithDiscovery(d registry.Registry) *Runtime {
	r := NewRuntime()
	r.discovery = d
	r.discoveryLeases = make(map[string]registry.ServiceInfo)
	return r
}

// registerDiscovery best-effort registers node as a live agent service. It
// is called after the node is recorded and the runtime's mutex is released,
// so a slow registry never holds up the agent graph.
func (r *Runtime) registerDiscovery(n *Node) {
	if r.discovery == nil {
		return
	}
	info := registry.ServiceInfo{
		Kind:       "agent",
		Name:       n.AgentType,
		Version:    "1",
		InstanceID: n.AgentID,
		Metadata:   map[string]string{"agent_name": n.AgentName, "parent_id": n.ParentID},
		StartedAt:  n.CreatedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()
	if err := r.discovery.Register(ctx, info); err == nil {
		r.mu.Lock()
		r.discoveryLeases[n.AgentID] = info
		r.mu.Unlock()
	}
}

// deregisterAllDiscovery best-effort deregisters every agent this runtime
// has published, called once during CleanupAll.
func (r *Runtime) deregisterAllDiscovery() {
	if r.discovery == nil {
		return
	}
	r.mu.Lock()
	leases := make([]registry.ServiceInfo, 0, len(r.discoveryLeases))
	for _, info := range r.discoveryLeases {
		leases = append(leases, info)
	}
	r.mu.Unlock()

	for _, info := range leases {
		ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
		_ = r.discovery.Deregister(ctx, info)
		cancel()
	}
}

// RegisterRoot adds the scan's root agent to the graph. Must be called
// exactly once, before any CreateAgent call.
func (r *Runtime) RegisterRoot(s *agent.State, agentType string) {
	r.mu.Lock()
	r.rootAgentID = s.AgentID
	n := &Node{
		AgentID:   s.AgentID,
		AgentName: s.AgentName,
		AgentType: agentType,
		State:     s,
		CreatedAt: time.Now(),
	}
	r.nodes[s.AgentID] = n
	r.mailboxes[s.AgentID] = NewMailbox()
	r.mu.Unlock()

	r.registerDiscovery(n)
}

// RootAgentID returns the ID of the registered root agent, or "" if none
// has been registered yet.
func (r *Runtime) RootAgentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rootAgentID
}

// IsRoot reports whether agentID is the scan's root agent.
func (r *Runtime) IsRoot(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return agentID == r.rootAgentID
}

// delegationEnvelope builds the task envelope a delegated child receives in
// its first mailbox delivery: the parent's inherited context followed by
// the delegation task itself, each in their own tag so the child can
// distinguish background from instruction.
func delegationEnvelope(parentID, inheritedContext, task string) string {
	var b strings.Builder
	if inheritedContext != "" {
		fmt.Fprintf(&b, "<inherited_context_from_parent>\n%s\n</inherited_context_from_parent>\n\n", inheritedContext)
	}
	fmt.Fprintf(&b, "<agent_delegation from=%q>\n"+
		"You have been delegated the following task. You are NOT your parent "+
		"agent: you have your own conversation, your own tool calls, and your "+
		"own iteration budget.\n\n%s\n</agent_delegation>", parentID, task)
	return b.String()
}

// CreateAgent registers a child agent delegated from parent, wires the
// delegation edge, and seeds the child's mailbox with its task envelope.
// It does not start the child's loop; the caller drives the child's
// agent.Tick loop on its own goroutine once CreateAgent returns (package
// scan does this with runAgentLoop).
func (r *Runtime) CreateAgent(parent *agent.State, child *agent.State, agentType, inheritedContext, task string) error {
	r.mu.Lock()

	if _, exists := r.nodes[child.AgentID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("graph: agent %s already registered", child.AgentID)
	}
	if _, ok := r.nodes[parent.AgentID]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("graph: parent agent %s not found", parent.AgentID)
	}

	n := &Node{
		AgentID:   child.AgentID,
		AgentName: child.AgentName,
		AgentType: agentType,
		ParentID:  parent.AgentID,
		State:     child,
		CreatedAt: time.Now(),
	}
	r.nodes[child.AgentID] = n
	r.children[parent.AgentID] = append(r.children[parent.AgentID], child.AgentID)
	r.edges = append(r.edges, Edge{From: parent.AgentID, To: child.AgentID, Type: EdgeDelegation, Timestamp: time.Now()})

	mb := NewMailbox()
	mb.Push(Envelope{
		Kind:    KindAgent,
		From:    parent.AgentID,
		To:      child.AgentID,
		Content: delegationEnvelope(parent.AgentID, inheritedContext, task),
	})
	r.mailboxes[child.AgentID] = mb
	r.mu.Unlock()

	r.registerDiscovery(n)
	return nil
}

// SpawnVerification records a spawned_verification edge from a reporting
// agent to its verifier, without the inherited-context framing CreateAgent
// applies (the verifier gets a purpose-built prompt from the verify
// package instead).
func (r *Runtime) SpawnVerification(reporter *agent.State, verifier *agent.State) error {
	r.mu.Lock()
	if _, exists := r.nodes[verifier.AgentID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("graph: agent %s already registered", verifier.AgentID)
	}
	n := &Node{
		AgentID:   verifier.AgentID,
		AgentName: verifier.AgentName,
		AgentType: "verification",
		ParentID:  reporter.AgentID,
		State:     verifier,
		CreatedAt: time.Now(),
	}
	r.nodes[verifier.AgentID] = n
	r.children[reporter.AgentID] = append(r.children[reporter.AgentID], verifier.AgentID)
	r.edges = append(r.edges, Edge{From: reporter.AgentID, To: verifier.AgentID, Type: EdgeSpawnedVerification, Timestamp: time.Now()})
	r.mailboxes[verifier.AgentID] = NewMailbox()
	r.mu.Unlock()

	r.registerDiscovery(n)
	return nil
}

// NodeType returns the agent_type recorded for agentID, or "" if unknown.
func (r *Runtime) NodeType(agentID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[agentID]; ok {
		return n.AgentType
	}
	return ""
}

// ParentOf returns the parent agent ID for agentID, or "" for the root or
// an unknown agent.
func (r *Runtime) ParentOf(agentID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[agentID]; ok {
		return n.ParentID
	}
	return ""
}

// Mailbox returns the mailbox for agentID, creating one if it does not yet
// exist (defensive: every registered node should already have one).
func (r *Runtime) Mailbox(agentID string) *Mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.mailboxes[agentID]
	if !ok {
		mb = NewMailbox()
		r.mailboxes[agentID] = mb
	}
	return mb
}

// SendMessage delivers content from one agent to another, recording a
// message edge.
func (r *Runtime) SendMessage(from, to, content string) error {
	r.mu.Lock()
	if _, ok := r.nodes[to]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("graph: recipient agent %s not found", to)
	}
	r.edges = append(r.edges, Edge{From: from, To: to, Type: EdgeMessage, Timestamp: time.Now()})
	mb := r.mailboxes[to]
	r.mu.Unlock()

	mb.Push(Envelope{Kind: KindAgent, From: from, To: to, Content: content})
	return nil
}

// SendUserMessage injects an operator message into an agent's mailbox.
func (r *Runtime) SendUserMessage(to, content string) error {
	r.mu.Lock()
	mb, ok := r.mailboxes[to]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("graph: agent %s not found", to)
	}
	mb.Push(Envelope{Kind: KindUser, From: "user", To: to, Content: content})
	return nil
}

// StopAgent requests that agentID's loop stop at its next cooperative
// checkpoint. It is idempotent: stopping an already-terminal agent is a
// no-op, matching the single canonical path (State.RequestStop) through
// which a stop becomes visible to the loop.
func (r *Runtime) StopAgent(agentID string) error {
	r.mu.Lock()
	n, ok := r.nodes[agentID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("graph: agent %s not found", agentID)
	}
	n.State.RequestStop()
	return nil
}

// ActiveNonRootAgents returns the IDs of every non-root agent whose status
// is running or stopping, the set finish_scan must find empty before the
// root agent may finish (spec testable property S4).
func (r *Runtime) ActiveNonRootAgents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []string
	for id, n := range r.nodes {
		if id == r.rootAgentID {
			continue
		}
		switch n.State.CurrentStatus() {
		case agent.StatusRunning, agent.StatusStopping:
			active = append(active, id)
		}
	}
	sort.Strings(active)
	return active
}

// nodeView is a rendering-only snapshot used by ViewGraph so the lock is
// released before string building.
type nodeView struct {
	id, name, agentType, status string
}

// ViewGraph renders the delegation tree rooted at the scan's root agent as
// indented text, marking viewerID's own node, and appends a status tally
// across every registered agent.
func (r *Runtime) ViewGraph(viewerID string) string {
	r.mu.Lock()
	views := make(map[string]nodeView, len(r.nodes))
	tally := make(map[string]int)
	for id, n := range r.nodes {
		status := n.State.CurrentStatus().String()
		if status == "error" {
			status = "failed"
		}
		views[id] = nodeView{id: id, name: n.AgentName, agentType: n.AgentType, status: status}
		tally[status]++
	}
	children := make(map[string][]string, len(r.children))
	for k, v := range r.children {
		cs := append([]string(nil), v...)
		sort.Strings(cs)
		children[k] = cs
	}
	root := r.rootAgentID
	r.mu.Unlock()

	var b strings.Builder
	var render func(id string, depth int)
	render = func(id string, depth int) {
		v := views[id]
		marker := ""
		if id == viewerID {
			marker = " ← This is you"
		}
		fmt.Fprintf(&b, "%s- %s (%s, %s)%s\n", strings.Repeat("  ", depth), v.name, v.agentType, v.status, marker)
		for _, childID := range children[id] {
			render(childID, depth+1)
		}
	}
	if root != "" {
		render(root, 0)
	}

	b.WriteString("\nstatus tally:")
	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%d", k, tally[k])
	}
	return b.String()
}

// CleanupAll requests a stop on every registered agent. Called during scan
// shutdown; unjoined worker goroutines are abandoned daemon-style after the
// grace period, per the concurrency model's shutdown policy.
func (r *Runtime) CleanupAll() {
	r.mu.Lock()
	nodes := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, n)
	}
	r.mu.Unlock()

	for _, n := range nodes {
		n.State.RequestStop()
	}

	r.deregisterAllDiscovery()
}
