package scan

import (
	"context"
	"encoding/json"

	"github.com/strix-run/orchestrator/agent"
	"github.com/strix-run/orchestrator/dispatch"
	"github.com/strix-run/orchestrator/graph"
	"github.com/strix-run/orchestrator/llm"
	"github.com/strix-run/orchestrator/toolcat"
)

// mailboxAdapter satisfies agent.MailboxDrainer over a graph.Mailbox,
// keeping package agent decoupled from package graph (see agent/loop.go).
type mailboxAdapter struct {
	mb *graph.Mailbox
}

func (a mailboxAdapter) Drain() []agent.InboundMessage {
	envelopes := a.mb.Drain()
	out := make([]agent.InboundMessage, len(envelopes))
	for i, e := range envelopes {
		out[i] = agent.InboundMessage{
			From:    e.From,
			Content: e.FormatForDelivery(),
			IsUser:  e.Kind == graph.KindUser,
		}
	}
	return out
}

// dispatchAdapter satisfies agent.ToolDispatcher over a dispatch.Dispatcher,
// converting the LLM's vendor-native ToolCall shape into dispatch's
// index-tagged Invocation and back.
type dispatchAdapter struct {
	d *dispatch.Dispatcher
}

func (a dispatchAdapter) Dispatch(ctx context.Context, state *agent.State, calls []llm.ToolCall) []agent.ToolOutcome {
	invocations := make([]dispatch.Invocation, len(calls))
	for i, c := range calls {
		args := map[string]any{}
		if c.Arguments != "" {
			_ = json.Unmarshal([]byte(c.Arguments), &args)
		}
		invocations[i] = dispatch.Invocation{
			Index:      i,
			ToolCallID: c.ID,
			ToolName:   c.Name,
			Arguments:  args,
		}
	}

	results := a.d.Run(ctx, state, invocations)

	outcomes := make([]agent.ToolOutcome, len(results))
	for i, r := range results {
		outcomes[i] = agent.ToolOutcome{
			ToolCallID: r.ToolCallID,
			ToolName:   r.ToolName,
			Success:    r.Success,
			Output:     r.Output,
			Message:    r.Message,
			IsFinish:   r.Success && isFinishTool(r.ToolName),
		}
	}
	return outcomes
}

func isFinishTool(name string) bool {
	return name == "finish_scan" || name == "agent_finish"
}

// llmCaller satisfies agent.LLMCaller over an llm.Client, binding every
// call to a fixed token-tracking slot keyed by the owning agent and
// advertising the controller's tool catalog on every turn.
type llmCaller struct {
	client *llm.Client
	slot   string
	tools  []llm.ToolDef
}

func (c llmCaller) Complete(ctx context.Context, prompt llm.AssembledPrompt) (llm.Message, error) {
	prompt.Tools = c.tools
	return c.client.Complete(ctx, c.slot, prompt)
}

// toolDefsFromCatalog renders a toolcat.Catalog's registered specs into the
// llm.ToolDef shape a completion request advertises to the model, building
// a JSON Schema object from each tool's ArgSpec list.
func toolDefsFromCatalog(catalog *toolcat.Catalog) []llm.ToolDef {
	specs := catalog.All()
	defs := make([]llm.ToolDef, len(specs))
	for i, spec := range specs {
		properties := map[string]any{}
		var required []string
		for _, a := range spec.Args {
			prop := map[string]any{"type": a.Type}
			if a.Description != "" {
				prop["description"] = a.Description
			}
			properties[a.Name] = prop
			if a.Required {
				required = append(required, a.Name)
			}
		}
		defs[i] = llm.ToolDef{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		}
	}
	return defs
}
