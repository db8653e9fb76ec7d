package scan

import (
	"context"
	"fmt"

	"github.com/strix-run/orchestrator/agent"
	"github.com/strix-run/orchestrator/finding"
	"github.com/strix-run/orchestrator/toolcat"
	"github.com/strix-run/orchestrator/toolerr"
	"github.com/strix-run/orchestrator/verify"
)

// rootSystemPrompt and delegateSystemPrompt frame the two agent types a
// scan ever boots directly (delegated sub-agents inherit delegateSystemPrompt
// too; only the verifier gets its own, verifierSystemPrompt, which
// createVulnerabilityReport passes to spawn).
const (
	rootSystemPrompt = "You are the lead agent coordinating a security assessment. " +
		"Delegate exploratory work with create_agent, report confirmed findings " +
		"with create_vulnerability_report, and call finish_scan only once every " +
		"delegated agent has completed and no report is still pending verification."

	delegateSystemPrompt = "You are a delegated security assessment agent. Work only " +
		"within the scope of the task you were given. Call agent_finish when done."

	verifierSystemPrompt = "You are a verification agent. Independently reproduce the " +
		"reported vulnerability at least 3 times, then run independent control tests " +
		"to confirm it is not a false positive. Call verify_vulnerability_report or " +
		"reject_vulnerability_report before agent_finish."
)

// registerBuiltinTools wires every tool named in spec.md's agent-graph,
// reporting, and finish families into c.Catalog. Each handler closes over
// the controller's singletons rather than taking them as arguments, since
// toolcat.Handler/StatefulHandler signatures are fixed by the dispatcher.
func registerBuiltinTools(c *Controller) {
	c.Catalog.Register(toolcat.Spec{
		Name:            "create_agent",
		Description:     "Delegate a task to a new sub-agent.",
		NeedsAgentState: true,
		Args: []toolcat.ArgSpec{
			{Name: "name", Type: "string", Required: true},
			{Name: "agent_type", Type: "string", Required: true},
			{Name: "task", Type: "string", Required: true},
			{Name: "inherited_context", Type: "string"},
		},
		StatefulHandler: c.createAgent,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "send_message_to_agent",
		Description:     "Send a message to another agent in the graph.",
		NeedsAgentState: true,
		Args: []toolcat.ArgSpec{
			{Name: "to", Type: "string", Required: true},
			{Name: "content", Type: "string", Required: true},
		},
		StatefulHandler: c.sendMessage,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "view_agent_graph",
		Description:     "Render the current agent delegation tree and status tally.",
		NeedsAgentState: true,
		StatefulHandler: c.viewGraph,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:        "stop_agent",
		Description: "Request that another agent stop at its next checkpoint.",
		Args:        []toolcat.ArgSpec{{Name: "agent_id", Type: "string", Required: true}},
		Handler:     c.stopAgent,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "wait_for_message",
		Description:     "Suspend until a message satisfying resume_conditions arrives.",
		NeedsAgentState: true,
		Args: []toolcat.ArgSpec{
			{Name: "reason", Type: "string", Required: true},
			{Name: "resume_conditions", Type: "array"},
		},
		StatefulHandler: c.waitForMessage,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "create_vulnerability_report",
		Description:     "Submit a vulnerability report with full reproduction evidence and spawn its verifier.",
		NeedsAgentState: true,
		StatefulHandler: c.createVulnerabilityReport,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "verify_vulnerability_report",
		Description:     "Record a verifier's accept decision with two-phase evidence.",
		NeedsAgentState: true,
		StatefulHandler: c.verifyReport,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "reject_vulnerability_report",
		Description:     "Record a verifier's reject decision.",
		NeedsAgentState: true,
		Args: []toolcat.ArgSpec{
			{Name: "report_id", Type: "string", Required: true},
			{Name: "reason", Type: "string", Required: true},
		},
		StatefulHandler: c.rejectReport,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:        "list_pending_verifications",
		Description: "List every report still in the pending queue.",
		Handler:     c.listPending,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "agent_finish",
		Description:     "Finish this agent's task. Blocked for verifier agents with no recorded decision.",
		NeedsAgentState: true,
		Args:            []toolcat.ArgSpec{{Name: "summary", Type: "string", Required: true}},
		StatefulHandler: c.agentFinish,
	})

	c.Catalog.Register(toolcat.Spec{
		Name:            "finish_scan",
		Description:     "Finish the scan. Blocked while any delegated agent is active or any report is pending.",
		NeedsAgentState: true,
		Args:            []toolcat.ArgSpec{{Name: "summary", Type: "string", Required: true}},
		StatefulHandler: c.finishScan,
	})
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *Controller) createAgent(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	name := argString(args, "name")
	agentType := argString(args, "agent_type")
	task := argString(args, "task")
	if name == "" || task == "" {
		return nil, toolerr.New("create_agent", "validate", toolerr.ErrCodeInvalidInput, "name and task are required")
	}

	child := agent.NewState(name, c.DefaultMaxIterations)
	child.AgentType = agentType
	if err := c.Graph.CreateAgent(state, child, agentType, argString(args, "inherited_context"), task); err != nil {
		return nil, err
	}

	c.spawn(child, delegateSystemPrompt, agentType)

	return map[string]any{"agent_id": child.AgentID, "status": "created"}, nil
}

func (c *Controller) sendMessage(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	to := argString(args, "to")
	content := argString(args, "content")
	if to == "" || content == "" {
		return nil, toolerr.New("send_message_to_agent", "validate", toolerr.ErrCodeInvalidInput, "to and content are required")
	}
	if err := c.Graph.SendMessage(state.AgentID, to, content); err != nil {
		return nil, err
	}
	return map[string]any{"status": "sent"}, nil
}

func (c *Controller) viewGraph(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	return c.Graph.ViewGraph(state.AgentID), nil
}

func (c *Controller) stopAgent(ctx context.Context, args map[string]any) (any, error) {
	agentID := argString(args, "agent_id")
	if agentID == "" {
		return nil, toolerr.New("stop_agent", "validate", toolerr.ErrCodeInvalidInput, "agent_id is required")
	}
	if err := c.Graph.StopAgent(agentID); err != nil {
		return nil, err
	}
	return map[string]any{"status": "stop_requested"}, nil
}

func (c *Controller) waitForMessage(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	reason := argString(args, "reason")
	if reason == "" {
		return nil, toolerr.New("wait_for_message", "validate", toolerr.ErrCodeInvalidInput, "reason is required")
	}
	state.EnterWaitingState(reason, argStringSlice(args, "resume_conditions"))
	return map[string]any{"status": "waiting"}, nil
}

func (c *Controller) createVulnerabilityReport(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	report, err := reportFromArgs(state, args)
	if err != nil {
		return nil, toolerr.New("create_vulnerability_report", "validate", toolerr.ErrCodeEvidenceValidation, err.Error())
	}

	if c.VulnTypes != nil {
		if err := c.VulnTypes.ValidateControlTests(report.TypeID, report.Evidence); err != nil {
			return nil, toolerr.New("create_vulnerability_report", "validate", toolerr.ErrCodeEvidenceValidation, err.Error())
		}
	}

	id, err := c.Store.Submit(report)
	if err != nil {
		return nil, toolerr.New("create_vulnerability_report", "validate", toolerr.ErrCodeEvidenceValidation, err.Error())
	}

	verifier, err := c.Verify.SpawnVerifier(state, id)
	if err != nil {
		return nil, err
	}
	c.spawn(verifier, verifierSystemPrompt, "verification")

	return map[string]any{"id": id, "verifier_agent_id": verifier.AgentID, "status": "pending"}, nil
}

func reportFromArgs(state *agent.State, args map[string]any) (*finding.VulnReport, error) {
	evidence, err := evidenceFromArgs(args)
	if err != nil {
		return nil, err
	}

	report := &finding.VulnReport{
		Finding: &finding.Finding{
			AgentName:   state.AgentName,
			Title:       argString(args, "title"),
			Description: argString(args, "content"),
			Severity:    finding.Severity(argString(args, "severity")),
		},
		TypeID:         argString(args, "vulnerability_type"),
		ClaimAssertion: argString(args, "claim_assertion"),
		Evidence:       evidence,
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

func evidenceFromArgs(args map[string]any) (finding.VulnerabilityEvidence, error) {
	raw, ok := args["evidence"].(map[string]any)
	if !ok {
		return finding.VulnerabilityEvidence{}, fmt.Errorf("evidence object is required")
	}

	var ev finding.VulnerabilityEvidence
	if ex, ok := raw["http_exchange"].(map[string]any); ok {
		ev.HTTPExchange = finding.HTTPExchange{
			Method:       argString(ex, "method"),
			URL:          argString(ex, "url"),
			RequestBody:  argString(ex, "request_body"),
			ResponseBody: argString(ex, "response_body"),
		}
		if code, ok := ex["status_code"].(float64); ok {
			ev.HTTPExchange.StatusCode = int(code)
		}
	}
	if steps, ok := raw["reproduction_steps"].([]any); ok {
		for i, s := range steps {
			desc, _ := s.(string)
			ev.ReproductionSteps = append(ev.ReproductionSteps, finding.ReproStep{StepNumber: i + 1, Description: desc})
		}
	}
	ev.PoCPayload = argString(raw, "poc_payload")
	ev.TargetURL = argString(raw, "target_url")
	ev.NegativeControlPassed, _ = raw["negative_control_passed"].(bool)
	ev.NegativeControlDescription = argString(raw, "negative_control_description")
	if tests, ok := raw["control_tests"].([]any); ok {
		for _, t := range tests {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			ev.ControlTests = append(ev.ControlTests, finding.ControlTest{
				Name:       argString(tm, "name"),
				Conclusion: argString(tm, "conclusion"),
			})
		}
	}

	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}

func (c *Controller) verifyReport(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	reportID := argString(args, "report_id")
	if reportID == "" {
		return nil, toolerr.New("verify_vulnerability_report", "validate", toolerr.ErrCodeInvalidInput, "report_id is required")
	}

	count, _ := args["phase1_reproduction_count"].(float64)
	confirmed, _ := args["phase2_validity_confirmed"].(bool)
	evidence := finding.VerificationEvidence{
		Phase1ReproductionCount:       int(count),
		Phase1Notes:                   argString(args, "phase1_notes"),
		Phase2ValidityConfirmed:       confirmed,
		Phase2IndependentControlTests: argStringSlice(args, "phase2_independent_control_tests"),
		Phase2ValidityReasoning:       argString(args, "phase2_validity_reasoning"),
	}
	if !evidence.MeetsAcceptanceCriteria() {
		return nil, toolerr.New("verify_vulnerability_report", "validate", toolerr.ErrCodeVerificationPreconditionsUnmet,
			"phase1 reproduction_count must be >= 3 and phase2 must be confirmed with control tests and reasoning")
	}

	if err := c.Verify.RecordVerified(state.AgentID, reportID, c.VulnTypes, evidence); err != nil {
		return nil, err
	}
	return map[string]any{"status": "verified"}, nil
}

func (c *Controller) rejectReport(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	reportID := argString(args, "report_id")
	reason := argString(args, "reason")
	if reportID == "" || reason == "" {
		return nil, toolerr.New("reject_vulnerability_report", "validate", toolerr.ErrCodeInvalidInput, "report_id and reason are required")
	}
	if err := c.Verify.RecordRejected(state.AgentID, reportID, reason); err != nil {
		return nil, err
	}
	return map[string]any{"status": "rejected"}, nil
}

func (c *Controller) listPending(ctx context.Context, args map[string]any) (any, error) {
	pending := c.Store.ListByStatus(finding.VerificationPending)
	ids := make([]string, len(pending))
	for i, r := range pending {
		ids[i] = r.ID
	}
	return map[string]any{"pending": ids, "count": len(ids)}, nil
}

func (c *Controller) agentFinish(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	if err := c.Verify.AgentFinishGate(state.AgentID); err != nil {
		return nil, err
	}
	return map[string]any{"status": "finished", "summary": argString(args, "summary")}, nil
}

func (c *Controller) finishScan(ctx context.Context, state *agent.State, args map[string]any) (any, error) {
	if !c.Graph.IsRoot(state.AgentID) {
		return nil, toolerr.New("finish_scan", "validate", toolerr.ErrCodeInvalidInput, "only the root agent may call finish_scan")
	}
	if err := c.Verify.RootFinishGate(); err != nil {
		if gateErr, ok := err.(*verify.RootFinishGateError); ok && len(gateErr.ActiveAgents) > 0 {
			return nil, toolerr.New("finish_scan", "gate", toolerr.ErrCodeFinishBlockedActiveAgents, gateErr.Error())
		}
		return nil, toolerr.New("finish_scan", "gate", toolerr.ErrCodeFinishBlockedPendingVerifications, err.Error())
	}
	return map[string]any{"status": "finished", "summary": argString(args, "summary")}, nil
}
