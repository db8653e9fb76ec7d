package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/strix-run/orchestrator/llm"
)

// Outcome reports what a single Tick accomplished, so the caller's runner
// goroutine knows whether to loop again, sleep-poll, or exit.
type Outcome string

const (
	// OutcomeContinue means the loop should call Tick again immediately.
	OutcomeContinue Outcome = "continue"

	// OutcomeWaiting means the agent is suspended on its mailbox; the
	// caller should sleep before the next Tick (spec.md §5's 0.5s
	// sleep-poll while waiting).
	OutcomeWaiting Outcome = "waiting"

	// OutcomeTerminal means the agent reached one of its terminal
	// statuses; the caller should stop calling Tick.
	OutcomeTerminal Outcome = "terminal"
)

// InboundMessage is a mailbox delivery already formatted for insertion into
// the conversation history, decoupled from package graph's Envelope type
// so that package agent never needs to import package graph.
type InboundMessage struct {
	From    string
	Content string
	// IsUser distinguishes an operator message (always resumes a waiting
	// agent) from an inter-agent message (resumes only if the agent has no
	// ResumeConditions, or one of them names the sender or is "any").
	IsUser bool
}

// MailboxDrainer drains an agent's pending inbound messages.
type MailboxDrainer interface {
	Drain() []InboundMessage
}

// ToolOutcome is the result of dispatching one tool call back to the loop,
// decoupled from package dispatch's Result type for the same reason as
// InboundMessage above.
type ToolOutcome struct {
	ToolCallID string
	ToolName   string
	Success    bool
	Output     any
	Message    string
	// IsFinish marks that this tool call is a terminal call (agent_finish
	// or finish_scan) that completed successfully, ending the loop.
	IsFinish bool
}

// ToolDispatcher executes the tool calls one assistant turn requested.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, state *State, calls []llm.ToolCall) []ToolOutcome
}

// LLMCaller performs one completion request.
type LLMCaller interface {
	Complete(ctx context.Context, prompt llm.AssembledPrompt) (llm.Message, error)
}

// Services bundles everything a Tick needs beyond the agent's own State.
type Services struct {
	Mailbox      MailboxDrainer
	LLM          LLMCaller
	Tools        ToolDispatcher
	SystemPrompt string
	ModelName    string
	AgentType    string
}

// Tick advances an agent's loop by exactly one iteration, implementing the
// scheduler order: drain mailbox, check waiting/termination, advance the
// iteration counter, call the model, dispatch any requested tools. It is a
// pure function of (State, Services) to the next Outcome, matching the
// original implementation's agent_loop body factored into a single-step
// function so the caller controls its own goroutine and sleep cadence.
func Tick(ctx context.Context, state *State, svc Services) (Outcome, error) {
	deliverMailbox(state, svc.Mailbox)

	if state.IsWaitingForInput() {
		if state.HasWaitingTimeout() {
			state.SetCompleted(StatusTimeout)
			return OutcomeTerminal, nil
		}
		// A delivered message already called ResumeFromWaiting inside
		// deliverMailbox if it satisfied a resume condition; re-check.
		if state.IsWaitingForInput() {
			return OutcomeWaiting, nil
		}
	}

	if state.ShouldStop() {
		state.SetCompleted(StatusStopped)
		return OutcomeTerminal, nil
	}

	if state.CurrentStatus() == StatusLLMFailed {
		return OutcomeTerminal, nil
	}

	iteration := state.IncrementIteration()
	if state.HasReachedMaxIterations() {
		state.AddError(fmt.Sprintf("reached max iterations (%d)", state.MaxIterations))
		state.SetCompleted(StatusFailed)
		return OutcomeTerminal, nil
	}
	if state.IsApproachingMaxIterations() {
		remaining := state.MaxIterations - iteration
		state.AddMessage(llm.Message{Role: llm.RoleUser, Content: llm.ApproachingMaxIterationsWarning(remaining)})
	}

	state.SetStatus(StatusRunning)

	prompt := llm.AssemblePrompt(svc.SystemPrompt, state.AgentID, state.AgentName, svc.AgentType, svc.ModelName, state.GetConversationHistory())

	reply, err := svc.LLM.Complete(ctx, prompt)
	if err != nil {
		return handleLLMError(ctx, state, err)
	}
	state.AddMessage(reply)

	if state.HasEmptyLastMessages() {
		state.AddMessage(llm.Message{Role: llm.RoleUser, Content: llm.EmptyResponseCorrectiveMessage()})
		return OutcomeContinue, nil
	}

	if len(reply.ToolCalls) == 0 {
		return OutcomeContinue, nil
	}

	outcomes := svc.Tools.Dispatch(ctx, state, reply.ToolCalls)
	for _, o := range outcomes {
		content := o.Message
		if o.Success {
			content = formatToolSuccess(o)
		}
		state.AddMessage(llm.Message{
			Role:        llm.RoleTool,
			Name:        o.ToolName,
			ToolResults: []llm.ToolResult{{ToolCallID: o.ToolCallID, Content: content, IsError: !o.Success}},
		})
		if o.Success && o.IsFinish {
			state.SetCompleted(StatusCompleted)
			return OutcomeTerminal, nil
		}
	}

	return OutcomeContinue, nil
}

func formatToolSuccess(o ToolOutcome) string {
	if s, ok := o.Output.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", o.Output)
}

// deliverMailbox drains every pending inbound message into the
// conversation history, resuming a waiting agent when an operator message
// arrives unconditionally, or when an inter-agent message satisfies one of
// its recorded resume conditions.
func deliverMailbox(state *State, mailbox MailboxDrainer) {
	if mailbox == nil {
		return
	}
	for _, msg := range mailbox.Drain() {
		state.AddMessage(llm.Message{Role: llm.RoleUser, Content: msg.Content})
		if !state.IsWaitingForInput() {
			continue
		}
		if msg.IsUser || resumeConditionSatisfied(state, msg) {
			state.ResumeFromWaiting()
		}
	}
}

func resumeConditionSatisfied(state *State, msg InboundMessage) bool {
	s := state.snapshotResumeConditions()
	if len(s) == 0 {
		return true
	}
	for _, cond := range s {
		if cond == msg.From || cond == "any" {
			return true
		}
	}
	return false
}

// handleLLMError classifies an LLM transport error into either a
// continuable observation (transient failures the agent can retry past)
// or a terminal StatusLLMFailed, matching the original implementation's
// distinction between retryable and fatal LLM exceptions.
func handleLLMError(ctx context.Context, state *State, err error) (Outcome, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		state.SetCompleted(StatusStopped)
		return OutcomeTerminal, nil
	}

	var reqErr *llm.RequestFailedError
	if errors.As(err, &reqErr) {
		state.AddError(reqErr.Error())
		if reqErr.Retryable {
			return OutcomeContinue, nil
		}
		state.SetCompleted(StatusLLMFailed)
		return OutcomeTerminal, nil
	}

	state.AddError(err.Error())
	state.SetCompleted(StatusLLMFailed)
	return OutcomeTerminal, nil
}
