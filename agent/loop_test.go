package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strix-run/orchestrator/llm"
)

type stubMailbox struct {
	messages []InboundMessage
}

func (m *stubMailbox) Drain() []InboundMessage {
	out := m.messages
	m.messages = nil
	return out
}

type stubLLM struct {
	replies []llm.Message
	errs    []error
	calls   int
}

func (s *stubLLM) Complete(ctx context.Context, prompt llm.AssembledPrompt) (llm.Message, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.Message{}, s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return llm.Message{Role: llm.RoleAssistant, Content: "done"}, nil
}

type stubDispatcher struct {
	outcomes []ToolOutcome
}

func (d *stubDispatcher) Dispatch(ctx context.Context, state *State, calls []llm.ToolCall) []ToolOutcome {
	return d.outcomes
}

func newTestServices(llmCaller LLMCaller, dispatcher ToolDispatcher, mailbox MailboxDrainer) Services {
	return Services{
		Mailbox:      mailbox,
		LLM:          llmCaller,
		Tools:        dispatcher,
		SystemPrompt: "you are a test agent",
		ModelName:    "test-model",
		AgentType:    "recon",
	}
}

func TestTickContinuesOnPlainReply(t *testing.T) {
	state := NewState("recon-1", 10)
	stub := &stubLLM{replies: []llm.Message{{Role: llm.RoleAssistant, Content: "thinking..."}}}
	svc := newTestServices(stub, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeContinue, outcome)
	assert.Equal(t, StatusRunning, state.CurrentStatus())
	assert.Equal(t, 1, state.IterationCount)
}

func TestTickDispatchesToolCallsAndTerminatesOnFinish(t *testing.T) {
	state := NewState("recon-1", 10)
	stub := &stubLLM{replies: []llm.Message{{
		Role:      llm.RoleAssistant,
		Content:   "calling finish",
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "agent_finish", Arguments: `{"summary":"done"}`}},
	}}}
	dispatcher := &stubDispatcher{outcomes: []ToolOutcome{{
		ToolCallID: "call-1", ToolName: "agent_finish", Success: true, Output: "ok", IsFinish: true,
	}}}
	svc := newTestServices(stub, dispatcher, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminal, outcome)
	assert.Equal(t, StatusCompleted, state.CurrentStatus())
}

func TestTickStopsWhenStopRequested(t *testing.T) {
	state := NewState("recon-1", 10)
	state.SetStatus(StatusRunning)
	state.RequestStop()
	svc := newTestServices(&stubLLM{}, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminal, outcome)
	assert.Equal(t, StatusStopped, state.CurrentStatus())
}

func TestTickReturnsWaitingWhileSuspended(t *testing.T) {
	state := NewState("recon-1", 10)
	state.EnterWaitingState("waiting for operator", []string{"user"})
	svc := newTestServices(&stubLLM{}, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, outcome)
}

func TestTickResumesFromWaitingOnUserMessage(t *testing.T) {
	state := NewState("recon-1", 10)
	state.EnterWaitingState("waiting for operator", []string{"another-agent"})
	mailbox := &stubMailbox{messages: []InboundMessage{{From: "operator", Content: "go ahead", IsUser: true}}}
	stub := &stubLLM{replies: []llm.Message{{Role: llm.RoleAssistant, Content: "resuming"}}}
	svc := newTestServices(stub, &stubDispatcher{}, mailbox)

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeContinue, outcome)
	assert.False(t, state.IsWaitingForInput())
}

func TestTickTerminatesOnMaxIterations(t *testing.T) {
	state := NewState("recon-1", 1)
	state.IncrementIteration()
	svc := newTestServices(&stubLLM{}, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminal, outcome)
	assert.Equal(t, StatusFailed, state.CurrentStatus())
}

func TestTickInjectsCorrectiveMessageOnEmptyReply(t *testing.T) {
	state := NewState("recon-1", 10)
	stub := &stubLLM{replies: []llm.Message{{Role: llm.RoleAssistant, Content: ""}}}
	svc := newTestServices(stub, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeContinue, outcome)
	history := state.GetConversationHistory()
	assert.Equal(t, llm.RoleUser, history[len(history)-1].Role)
}

func TestTickRetriesOnRetryableLLMFailure(t *testing.T) {
	state := NewState("recon-1", 10)
	stub := &stubLLM{errs: []error{llm.NewRequestFailedError(llm.FailureTimeout, "timed out", 0)}}
	svc := newTestServices(stub, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeContinue, outcome)
	assert.NotEqual(t, StatusLLMFailed, state.CurrentStatus())
}

func TestTickTerminatesOnFatalLLMFailure(t *testing.T) {
	state := NewState("recon-1", 10)
	stub := &stubLLM{errs: []error{llm.NewRequestFailedError(llm.FailureAuthInvalid, "bad key", 401)}}
	svc := newTestServices(stub, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(context.Background(), state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminal, outcome)
	assert.Equal(t, StatusLLMFailed, state.CurrentStatus())
}

func TestTickTreatsContextCancellationAsStopped(t *testing.T) {
	state := NewState("recon-1", 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &stubLLM{errs: []error{errors.New("boom")}}
	svc := newTestServices(stub, &stubDispatcher{}, &stubMailbox{})

	outcome, err := Tick(ctx, state, svc)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminal, outcome)
	assert.Equal(t, StatusStopped, state.CurrentStatus())
}
