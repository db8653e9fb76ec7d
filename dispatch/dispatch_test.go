package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strix-run/orchestrator/agent"
	"github.com/strix-run/orchestrator/queue"
	"github.com/strix-run/orchestrator/toolcat"
)

func newTestCatalog() *toolcat.Catalog {
	c := toolcat.New()
	c.Register(toolcat.Spec{
		Name:           "ping",
		Description:    "replies pong",
		Parallelizable: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "pong", nil
		},
	})
	c.Register(toolcat.Spec{
		Name:        "stateful_echo",
		Description: "echoes an argument using agent state",
		NeedsAgentState: true,
		StatefulHandler: func(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
			return args["text"], nil
		},
	})
	c.Register(toolcat.Spec{
		Name:        "always_fails",
		Description: "always errors",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, assertErr{}
		},
	})
	c.Register(toolcat.Spec{
		Name:            "agent_finish",
		Description:     "finish",
		NeedsAgentState: true,
		StatefulHandler: func(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
			return "done", nil
		},
	})
	return c
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

type stubSandbox struct {
	url   string
	token string
}

func (s stubSandbox) URLFor(ctx context.Context, agentID string) (string, error) { return s.url, nil }
func (s stubSandbox) BearerToken(ctx context.Context, agentID string) (string, error) {
	return s.token, nil
}

// fakeQueueClient implements queue.Client just enough to verify Dispatcher
// publishes a Result for every completed invocation.
type fakeQueueClient struct {
	published []queue.Result
	channel   string
}

func (f *fakeQueueClient) Push(ctx context.Context, queueName string, item queue.WorkItem) error {
	return nil
}
func (f *fakeQueueClient) Pop(ctx context.Context, queueName string) (*queue.WorkItem, error) {
	return nil, nil
}
func (f *fakeQueueClient) Publish(ctx context.Context, channel string, result queue.Result) error {
	f.channel = channel
	f.published = append(f.published, result)
	return nil
}
func (f *fakeQueueClient) Subscribe(ctx context.Context, channel string) (<-chan queue.Result, error) {
	return nil, nil
}
func (f *fakeQueueClient) RegisterTool(ctx context.Context, meta queue.ToolMeta) error { return nil }
func (f *fakeQueueClient) ListTools(ctx context.Context) ([]queue.ToolMeta, error)     { return nil, nil }
func (f *fakeQueueClient) Heartbeat(ctx context.Context, toolName string) error        { return nil }
func (f *fakeQueueClient) GetWorkerCount(ctx context.Context, toolName string) (int, error) {
	return 0, nil
}
func (f *fakeQueueClient) IncrementWorkerCount(ctx context.Context, toolName string) error { return nil }
func (f *fakeQueueClient) DecrementWorkerCount(ctx context.Context, toolName string) error { return nil }
func (f *fakeQueueClient) Close() error                                                    { return nil }

func TestClassifyGroupsParallelizableRunsTogether(t *testing.T) {
	d := New(newTestCatalog(), stubSandbox{})
	waves := d.Classify([]Invocation{
		{Index: 0, ToolName: "ping"},
		{Index: 1, ToolName: "ping"},
		{Index: 2, ToolName: "stateful_echo"},
	})

	require.Len(t, waves, 2)
	assert.Equal(t, WaveParallel, waves[0].Kind)
	assert.Len(t, waves[0].Items, 2)
	assert.Equal(t, WaveSequential, waves[1].Kind)
}

func TestClassifyPullsFinishToolsIntoTrailingWave(t *testing.T) {
	d := New(newTestCatalog(), stubSandbox{})
	waves := d.Classify([]Invocation{
		{Index: 0, ToolName: "ping"},
		{Index: 1, ToolName: "agent_finish"},
		{Index: 2, ToolName: "stateful_echo"},
	})

	last := waves[len(waves)-1]
	assert.Equal(t, WaveFinish, last.Kind)
	assert.Equal(t, "agent_finish", last.Items[0].ToolName)
}

func TestRunPreservesOriginalIndexOrder(t *testing.T) {
	d := New(newTestCatalog(), stubSandbox{})
	state := agent.NewState("recon-1", 10)

	results := d.Run(context.Background(), state, []Invocation{
		{Index: 0, ToolCallID: "c0", ToolName: "ping"},
		{Index: 1, ToolCallID: "c1", ToolName: "stateful_echo", Arguments: map[string]any{"text": "hi"}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "pong", results[0].Output)
	assert.Equal(t, "hi", results[1].Output)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestRunReturnsErrorResultForUnknownTool(t *testing.T) {
	d := New(newTestCatalog(), stubSandbox{})
	state := agent.NewState("recon-1", 10)

	results := d.Run(context.Background(), state, []Invocation{{Index: 0, ToolName: "nonexistent"}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Message, "unknown tool")
}

func TestRunReturnsErrorResultWhenHandlerFails(t *testing.T) {
	d := New(newTestCatalog(), stubSandbox{})
	state := agent.NewState("recon-1", 10)

	results := d.Run(context.Background(), state, []Invocation{{Index: 0, ToolName: "always_fails"}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Message, "boom")
}

func TestRunRecordsActionOnSuccess(t *testing.T) {
	d := New(newTestCatalog(), stubSandbox{})
	state := agent.NewState("recon-1", 10)

	d.Run(context.Background(), state, []Invocation{{Index: 0, ToolName: "ping"}})

	summary := state.GetExecutionSummary()
	assert.Equal(t, 1, summary.ActionCount)
}

func TestRunSandboxedToolRejectsBadBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	catalog := toolcat.New()
	catalog.Register(toolcat.Spec{Name: "run_command", Description: "runs in sandbox", RunsInSandbox: true})

	d := New(catalog, stubSandbox{url: server.URL, token: "bad-token"})
	state := agent.NewState("recon-1", 10)

	results := d.Run(context.Background(), state, []Invocation{{Index: 0, ToolName: "run_command"}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Message, "sandbox rejected bearer token")
}

func TestRunPublishesResultToWorkQueueWhenConfigured(t *testing.T) {
	d := New(newTestCatalog(), stubSandbox{})
	fq := &fakeQueueClient{}
	d.WorkQueue = fq
	state := agent.NewState("recon-1", 10)

	d.Run(context.Background(), state, []Invocation{{Index: 0, ToolCallID: "c0", ToolName: "ping"}})

	require.Len(t, fq.published, 1)
	assert.Equal(t, "dispatch.results", fq.channel)
	assert.Equal(t, state.AgentID, fq.published[0].JobID)
	assert.Equal(t, "ping", fq.published[0].OutputType)
	assert.Contains(t, fq.published[0].OutputJSON, "pong")
}

func TestRunSandboxedToolDecodesJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stdout":"hello"}`))
	}))
	defer server.Close()

	catalog := toolcat.New()
	catalog.Register(toolcat.Spec{Name: "run_command", Description: "runs in sandbox", RunsInSandbox: true})

	d := New(catalog, stubSandbox{url: server.URL, token: "tok"})
	state := agent.NewState("recon-1", 10)

	results := d.Run(context.Background(), state, []Invocation{{Index: 0, ToolName: "run_command"}})

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, map[string]any{"stdout": "hello"}, results[0].Output)
}
