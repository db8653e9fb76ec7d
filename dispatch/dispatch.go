// Package dispatch executes the tool invocations an LLM turn requests,
// classifying them into parallel, sequential, and finish waves and
// preserving each invocation's original position in the result slice
// regardless of which wave or goroutine actually produced it.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/strix-run/orchestrator/agent"
	"github.com/strix-run/orchestrator/queue"
	"github.com/strix-run/orchestrator/toolcat"
	"github.com/strix-run/orchestrator/toolerr"
)

// finishToolNames are the terminal tools that must run last and alone in
// their own wave: a root agent's finish_scan, and any agent's agent_finish.
var finishToolNames = map[string]bool{
	"finish_scan":  true,
	"agent_finish": true,
}

const (
	// maxToolResultChars is the length a tool's formatted error message is
	// truncated to before being handed back to the agent.
	maxToolResultChars = 500

	// sandboxConnectTimeout bounds establishing the TCP/TLS connection to
	// the sandbox tool server.
	sandboxConnectTimeout = 10 * time.Second

	// sandboxTotalTimeout bounds the entire sandboxed tool call, including
	// the tool's own execution time inside the sandbox.
	sandboxTotalTimeout = 500 * time.Second

	// defaultMaxConcurrency caps how many invocations in a single parallel
	// wave run at once (spec.md §9 Open Question: unbounded vs capped —
	// see DESIGN.md for why a cap of 16 was chosen).
	defaultMaxConcurrency = 16

	// defaultResultChannel is the pub/sub channel a Dispatcher publishes
	// completed tool results to when WorkQueue is set.
	defaultResultChannel = "dispatch.results"

	// publishTimeout bounds each best-effort Result publish so a slow or
	// unreachable Redis instance never holds up the agent loop.
	publishTimeout = 2 * time.Second
)

// Invocation is one tool call an LLM turn requested, tagged with its
// position in that turn's tool-call list so results can be reassembled in
// original order even though waves may execute out of order internally.
type Invocation struct {
	Index     int
	ToolCallID string
	ToolName  string
	Arguments map[string]any
}

// Result is the outcome of dispatching one Invocation.
type Result struct {
	Index      int
	ToolCallID string
	ToolName   string
	Success    bool
	Output     any
	Message    string
}

// WaveKind classifies how a group of invocations is executed.
type WaveKind string

const (
	WaveParallel   WaveKind = "parallel_wave"
	WaveSequential WaveKind = "sequential_wave"
	WaveFinish     WaveKind = "finish_wave"
)

// Wave is a contiguous run of invocations sharing an execution strategy.
type Wave struct {
	Kind  WaveKind
	Items []Invocation
}

// SandboxTransport resolves a reachable URL for the calling agent's
// sandbox. It is provided by package sandbox via sandbox.Adapter.
type SandboxTransport interface {
	URLFor(ctx context.Context, agentID string) (string, error)
	BearerToken(ctx context.Context, agentID string) (string, error)
}

// Dispatcher routes tool invocations to the catalog's handlers or, for
// RunsInSandbox tools, to the sandbox's HTTP execute endpoint.
type Dispatcher struct {
	Catalog        *toolcat.Catalog
	Sandbox        SandboxTransport
	HTTPClient     *http.Client
	MaxConcurrency int

	// WorkQueue, when set, receives a queue.Result publish for every
	// completed invocation, letting other processes in a distributed
	// deployment observe tool activity the same way the teacher's
	// tool/worker pool publishes job results over Redis pub/sub. Nil by
	// default: publishing is strictly additional to the in-process
	// result already returned by Run.
	WorkQueue     queue.Client
	ResultChannel string
}

// New constructs a Dispatcher with the default sandbox HTTP client and
// concurrency cap.
func New(catalog *toolcat.Catalog, sandboxTransport SandboxTransport) *Dispatcher {
	return &Dispatcher{
		Catalog: catalog,
		Sandbox: sandboxTransport,
		HTTPClient: &http.Client{
			Timeout: sandboxTotalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: sandboxConnectTimeout}).DialContext,
			},
		},
		MaxConcurrency: defaultMaxConcurrency,
	}
}

// Classify groups invocations into ordered waves: any finish-tool call is
// pulled out into a single trailing finish wave; among the remainder,
// maximal consecutive runs of parallelizable tools become one parallel
// wave each, and every other invocation becomes its own one-item
// sequential wave, preserving original relative order throughout.
func (d *Dispatcher) Classify(invocations []Invocation) []Wave {
	var waves []Wave
	var finish []Invocation
	var run []Invocation
	runParallel := false

	flushRun := func() {
		if len(run) == 0 {
			return
		}
		kind := WaveSequential
		if runParallel {
			kind = WaveParallel
		}
		waves = append(waves, Wave{Kind: kind, Items: run})
		run = nil
	}

	for _, inv := range invocations {
		if finishToolNames[inv.ToolName] {
			finish = append(finish, inv)
			continue
		}

		spec, ok := d.Catalog.Lookup(inv.ToolName)
		parallelizable := ok && spec.Parallelizable

		if len(run) == 0 {
			run = append(run, inv)
			runParallel = parallelizable
			continue
		}
		if parallelizable && runParallel {
			run = append(run, inv)
			continue
		}
		flushRun()
		run = append(run, inv)
		runParallel = parallelizable
	}
	flushRun()

	if len(finish) > 0 {
		waves = append(waves, Wave{Kind: WaveFinish, Items: finish})
	}
	return waves
}

// Run classifies and executes invocations for the given agent state,
// returning results indexed by each invocation's original Index.
func (d *Dispatcher) Run(ctx context.Context, state *agent.State, invocations []Invocation) []Result {
	results := make([]Result, len(invocations))

	for _, wave := range d.Classify(invocations) {
		switch wave.Kind {
		case WaveParallel:
			d.runParallel(ctx, state, wave.Items, results)
		case WaveSequential, WaveFinish:
			for _, inv := range wave.Items {
				results[inv.Index] = d.runOne(ctx, state, inv)
			}
		}
	}
	return results
}

func (d *Dispatcher) runParallel(ctx context.Context, state *agent.State, items []Invocation, results []Result) {
	limit := d.MaxConcurrency
	if limit <= 0 {
		limit = len(items)
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, inv := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(inv Invocation) {
			defer wg.Done()
			defer func() { <-sem }()
			results[inv.Index] = d.runOne(ctx, state, inv)
		}(inv)
	}
	wg.Wait()
}

func (d *Dispatcher) runOne(ctx context.Context, state *agent.State, inv Invocation) Result {
	spec, ok := d.Catalog.Lookup(inv.ToolName)
	if !ok {
		err := toolerr.New(inv.ToolName, "dispatch", toolerr.ErrCodeUnknownTool, fmt.Sprintf("unknown tool %q", inv.ToolName))
		result := errorResult(inv, err)
		d.publishResult(ctx, state.AgentID, result)
		return result
	}

	var (
		output any
		err    error
	)
	switch {
	case spec.RunsInSandbox:
		output, err = d.runSandboxed(ctx, state.AgentID, inv)
	case spec.NeedsAgentState:
		output, err = spec.StatefulHandler(ctx, state, inv.Arguments)
	default:
		output, err = spec.Handler(ctx, inv.Arguments)
	}

	if err != nil {
		result := errorResult(inv, toolerr.New(inv.ToolName, "execute", toolerr.ErrCodeToolRuntimeError, truncate(err.Error(), maxToolResultChars)))
		d.publishResult(ctx, state.AgentID, result)
		return result
	}

	state.AddAction(agent.ActionRecord{ToolName: inv.ToolName, Arguments: inv.Arguments, Result: output})
	result := Result{Index: inv.Index, ToolCallID: inv.ToolCallID, ToolName: inv.ToolName, Success: true, Output: output}
	d.publishResult(ctx, state.AgentID, result)
	return result
}

// publishResult best-effort publishes r to WorkQueue's result channel. A
// publish failure or a nil WorkQueue never affects the Result already
// returned to the caller.
func (d *Dispatcher) publishResult(ctx context.Context, agentID string, r Result) {
	if d.WorkQueue == nil {
		return
	}
	outputJSON, err := json.Marshal(r.Output)
	if err != nil {
		outputJSON = []byte("null")
	}
	channel := d.ResultChannel
	if channel == "" {
		channel = defaultResultChannel
	}
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_ = d.WorkQueue.Publish(publishCtx, channel, queue.Result{
		JobID:      agentID,
		Index:      r.Index,
		OutputJSON: string(outputJSON),
		OutputType: r.ToolName,
		Error:      r.Message,
	})
}

func (d *Dispatcher) runSandboxed(ctx context.Context, agentID string, inv Invocation) (any, error) {
	if d.Sandbox == nil {
		return nil, fmt.Errorf("no sandbox transport configured")
	}
	url, err := d.Sandbox.URLFor(ctx, agentID)
	if err != nil {
		return nil, err
	}
	token, err := d.Sandbox.BearerToken(ctx, agentID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{"tool": inv.ToolName, "arguments": inv.Arguments})
	if err != nil {
		return nil, fmt.Errorf("marshal sandbox request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sandboxTotalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sandbox request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, toolerr.New(inv.ToolName, "sandbox_execute", toolerr.ErrCodeSandboxUnreachable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, toolerr.New(inv.ToolName, "sandbox_execute", toolerr.ErrCodeSandboxAuthFailed, "sandbox rejected bearer token")
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sandbox response: %w", err)
	}

	var out any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return string(respBody), nil
	}
	return out, nil
}

func errorResult(inv Invocation, err *toolerr.Error) Result {
	return Result{
		Index:      inv.Index,
		ToolCallID: inv.ToolCallID,
		ToolName:   inv.ToolName,
		Success:    false,
		Message:    err.Error(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
