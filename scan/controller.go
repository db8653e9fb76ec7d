// Package scan boots the singletons a security assessment run shares (the
// finding store, the agent graph, the tool catalog and dispatcher, the
// verification orchestrator) and drives the root agent's loop from launch
// to exit code, per spec.md §4.10's Scan Controller.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/strix-run/orchestrator/agent"
	"github.com/strix-run/orchestrator/dispatch"
	"github.com/strix-run/orchestrator/finding"
	"github.com/strix-run/orchestrator/graph"
	"github.com/strix-run/orchestrator/llm"
	"github.com/strix-run/orchestrator/queue"
	"github.com/strix-run/orchestrator/registry"
	"github.com/strix-run/orchestrator/sandbox"
	"github.com/strix-run/orchestrator/toolcat"
	"github.com/strix-run/orchestrator/verify"
)

// Exit codes per spec.md §4.10: clean completion, completion with at least
// one verified finding, and a fatal error that prevented the scan from
// reaching a terminal root status at all.
const (
	ExitClean            = 0
	ExitVerifiedFindings = 2
	ExitFatal            = 1
)

// cleanupGrace bounds how long Run waits for spawned agent goroutines to
// observe their stop request before abandoning them daemon-style.
const cleanupGrace = 5 * time.Second

// Config configures a Controller's LLM transport, sandbox adapter, and
// default iteration budget.
type Config struct {
	LLMEndpoint string
	LLMAPIKey   string
	LLMModel    string
	HTTPClient  *http.Client

	// Sandbox defaults to an in-memory fake suitable for tests; production
	// callers supply a real container-runtime-backed sandbox.Adapter.
	Sandbox sandbox.Adapter

	// VulnTypes defaults to an empty registry (no required control tests
	// enforced) if left nil.
	VulnTypes *finding.VulnTypeRegistry

	// Discovery, when set, publishes every agent this scan creates to a
	// registry.Registry (e.g. an etcd-backed one from registry.NewClient)
	// so other processes in a distributed deployment can see this scan's
	// live agents. Left nil, the graph registers nothing.
	Discovery registry.Registry

	// WorkQueue, when set, makes the dispatcher publish a queue.Result for
	// every tool invocation it completes (see dispatch.Dispatcher.WorkQueue).
	// Left nil, results stay in-process only.
	WorkQueue queue.Client

	DefaultMaxIterations int

	Logger *slog.Logger
}

// Controller owns every process-wide singleton a scan's agents share.
type Controller struct {
	Graph      *graph.Runtime
	Store      *finding.Store
	VulnTypes  *finding.VulnTypeRegistry
	Catalog    *toolcat.Catalog
	Dispatcher *dispatch.Dispatcher
	Verify     *verify.Orchestrator
	Sandbox    sandbox.Adapter
	LLM        *llm.Client
	Tracker    llm.TokenTracker

	DefaultMaxIterations int
	Model                string
	Logger               *slog.Logger

	scanCtx  context.Context
	lastRoot *agent.State
	wg       sync.WaitGroup
	tools    []llm.ToolDef
}

// NewController wires every component built for spec.md's component table
// into one Controller: the finding store and agent graph singletons, the
// tool catalog with every builtin tool registered, the dispatcher routing
// sandboxed calls through Sandbox, and the verification orchestrator gating
// agent_finish/finish_scan.
func NewController(cfg Config) *Controller {
	if cfg.DefaultMaxIterations <= 0 {
		cfg.DefaultMaxIterations = 300
	}
	if cfg.Sandbox == nil {
		cfg.Sandbox = sandbox.NewInMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if cfg.VulnTypes == nil {
		if reg, err := finding.NewVulnTypeRegistry(defaultVulnTypes()); err == nil {
			cfg.VulnTypes = reg
		}
	}

	tracker := llm.NewTokenTracker()
	client := llm.NewClient(llm.ClientConfig{
		Endpoint:   cfg.LLMEndpoint,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.LLMModel,
		HTTPClient: cfg.HTTPClient,
	}, tracker)

	var g *graph.Runtime
	if cfg.Discovery != nil {
		g = graph.NewRuntimeWithDiscovery(cfg.Discovery)
	} else {
		g = graph.NewRuntime()
	}
	store := finding.NewStore()
	catalog := toolcat.New()
	transport := &sandbox.Transport{Adapter: cfg.Sandbox}
	dispatcher := dispatch.New(catalog, transport)
	dispatcher.WorkQueue = cfg.WorkQueue
	verifyOrch := verify.New(g, store)

	c := &Controller{
		Graph:                g,
		Store:                store,
		VulnTypes:            cfg.VulnTypes,
		Catalog:              catalog,
		Dispatcher:           dispatcher,
		Verify:               verifyOrch,
		Sandbox:              cfg.Sandbox,
		LLM:                  client,
		Tracker:              tracker,
		DefaultMaxIterations: cfg.DefaultMaxIterations,
		Model:                cfg.LLMModel,
		Logger:               cfg.Logger,
	}
	registerBuiltinTools(c)
	c.tools = toolDefsFromCatalog(catalog)
	return c
}

func (c *Controller) servicesFor(state *agent.State, systemPrompt, agentType string) agent.Services {
	return agent.Services{
		Mailbox:      mailboxAdapter{mb: c.Graph.Mailbox(state.AgentID)},
		LLM:          llmCaller{client: c.LLM, slot: state.AgentID, tools: c.tools},
		Tools:        dispatchAdapter{d: c.Dispatcher},
		SystemPrompt: systemPrompt,
		ModelName:    c.Model,
		AgentType:    agentType,
	}
}

// spawn launches state's loop on its own goroutine, tracked so Run's
// cleanup can wait for it within the grace period.
func (c *Controller) spawn(state *agent.State, systemPrompt, agentType string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		runAgentLoop(c.scanCtx, state, c.servicesFor(state, systemPrompt, agentType))
	}()
}

// Run boots the root agent with task as its initial instruction and blocks
// on its loop alone: delegated and verifier agents spawned along the way
// run on goroutines tracked separately (see spawn), so a root that
// terminates without calling finish_scan (failed, stopped, timed out)
// doesn't leave Run hanging on children it never waited for. Once the root
// is terminal, Shutdown reins in whatever is still running before Run
// reports the exit code spec.md §4.10 specifies.
func (c *Controller) Run(ctx context.Context, task string) int {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.scanCtx = runCtx

	root := agent.NewState("root", c.DefaultMaxIterations)
	root.AgentType = "root"
	root.AddMessage(llm.Message{Role: llm.RoleUser, Content: task})
	c.Graph.RegisterRoot(root, "root")
	c.lastRoot = root

	runAgentLoop(runCtx, root, c.servicesFor(root, rootSystemPrompt, "root"))
	c.Shutdown()

	return c.exitCodeFor(root)
}

// Shutdown requests a stop on every registered agent and waits up to
// cleanupGrace for their loops to observe it, matching spec.md §4.10/§5's
// "stop all non-terminal agents, timeout ≈5s, then abandon" cleanup policy.
func (c *Controller) Shutdown() {
	c.Graph.CleanupAll()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(cleanupGrace):
		c.Logger.Warn("scan shutdown: agents still running past cleanup grace period, abandoning")
	}
}

func (c *Controller) exitCodeFor(root *agent.State) int {
	switch root.CurrentStatus() {
	case agent.StatusCompleted:
		if c.Store.Counts()[finding.VerificationVerified] > 0 {
			return ExitVerifiedFindings
		}
		return ExitClean
	default:
		return ExitFatal
	}
}

// Summary is a human-readable accounting of a completed scan, suitable for
// a CLI entrypoint to print before exiting.
type Summary struct {
	RootStatus string
	Counts     map[finding.VerificationStatus]int
	Usage      llm.TokenUsage
}

// String renders the summary as the line a CLI entrypoint prints on exit.
func (s Summary) String() string {
	return fmt.Sprintf(
		"root=%s verified=%d rejected=%d needs_manual_review=%d pending=%d tokens=%d",
		s.RootStatus,
		s.Counts[finding.VerificationVerified],
		s.Counts[finding.VerificationRejected],
		s.Counts[finding.VerificationNeedsManualReview],
		s.Counts[finding.VerificationPending],
		s.Usage.TotalTokens,
	)
}

// Report snapshots the scan's outcome after Run returns. Safe to call only
// after Run has returned at least once.
func (c *Controller) Report() Summary {
	status := "unknown"
	if c.lastRoot != nil {
		status = c.lastRoot.CurrentStatus().String()
	}
	return Summary{
		RootStatus: status,
		Counts:     c.Store.Counts(),
		Usage:      c.Tracker.Total(),
	}
}
