// Package verify implements the verification orchestrator (spec.md §4.8):
// it spawns a verifier agent for each pending vulnerability report, holds
// it to a 600-second watchdog, and gates both the verifier's own
// agent_finish and the root agent's finish_scan on a recorded decision.
package verify

import (
	"fmt"
	"sync"
	"time"

	"github.com/strix-run/orchestrator/agent"
	"github.com/strix-run/orchestrator/finding"
	"github.com/strix-run/orchestrator/graph"
)

const (
	// DefaultMaxIterations is the iteration budget a verifier agent is
	// spawned with, distinct from (and much smaller than) a reporting
	// agent's budget, matching the original implementation's
	// _spawn_verification_agent.
	DefaultMaxIterations = 50

	// DefaultWatchdogTimeout is how long a verifier may run before its
	// report is force-moved to needs_manual_review.
	DefaultWatchdogTimeout = 600 * time.Second
)

// Orchestrator coordinates verifier agent lifecycles against the shared
// finding store and agent graph.
type Orchestrator struct {
	Graph *graph.Runtime
	Store *finding.Store

	MaxIterations   int
	WatchdogTimeout time.Duration

	mu               sync.Mutex
	watchdogs        map[string]*time.Timer
	verifierToReport map[string]string
}

// New constructs an Orchestrator with spec-default iteration budget and
// watchdog timeout.
func New(g *graph.Runtime, store *finding.Store) *Orchestrator {
	return &Orchestrator{
		Graph:            g,
		Store:            store,
		MaxIterations:    DefaultMaxIterations,
		WatchdogTimeout:  DefaultWatchdogTimeout,
		watchdogs:        make(map[string]*time.Timer),
		verifierToReport: make(map[string]string),
	}
}

// SpawnVerifier creates a verifier agent state for reportID, registers it
// in the agent graph as a spawned_verification child of reporter, and
// arms the watchdog. The caller is responsible for driving the verifier's
// agent.Tick loop on its own goroutine (package scan does this with
// runAgentLoop); SpawnVerifier only performs the bookkeeping.
func (o *Orchestrator) SpawnVerifier(reporter *agent.State, reportID string) (*agent.State, error) {
	report, ok := o.Store.Get(reportID)
	if !ok {
		return nil, fmt.Errorf("verify: unknown report %s", reportID)
	}
	if report.VerificationStatus != finding.VerificationPending {
		return nil, fmt.Errorf("verify: report %s is not pending", reportID)
	}

	verifier := agent.NewState(fmt.Sprintf("Verifier-%s", reportID), o.MaxIterations)
	verifier.AgentType = "verification"
	if err := o.Graph.SpawnVerification(reporter, verifier); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.verifierToReport[verifier.AgentID] = reportID
	o.watchdogs[verifier.AgentID] = time.AfterFunc(o.WatchdogTimeout, func() {
		o.onWatchdogFired(verifier.AgentID, reportID, verifier)
	})
	o.mu.Unlock()

	return verifier, nil
}

func (o *Orchestrator) onWatchdogFired(verifierID, reportID string, verifier *agent.State) {
	o.mu.Lock()
	delete(o.watchdogs, verifierID)
	o.mu.Unlock()

	if report, ok := o.Store.Get(reportID); ok && report.VerificationStatus == finding.VerificationPending {
		_ = o.Store.MoveToManualReview(reportID, "verification_watchdog_timeout")
	}
	verifier.SetCompleted(agent.StatusTimeout)
}

func (o *Orchestrator) cancelWatchdog(verifierID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.watchdogs[verifierID]; ok {
		t.Stop()
		delete(o.watchdogs, verifierID)
	}
}

// RecordVerified records a verifier's accept decision: the two-phase
// evidence must already meet finding.VerificationEvidence's acceptance
// criteria, matched against the registry's required control test names
// for the report's vulnerability type.
func (o *Orchestrator) RecordVerified(verifierID, reportID string, registry *finding.VulnTypeRegistry, evidence finding.VerificationEvidence) error {
	report, ok := o.Store.Get(reportID)
	if !ok {
		return fmt.Errorf("verify: unknown report %s", reportID)
	}
	if registry != nil {
		if err := registry.ValidateControlTests(report.TypeID, report.Evidence); err != nil {
			return err
		}
	}
	if err := o.Store.Verify(reportID, evidence); err != nil {
		return err
	}
	o.cancelWatchdog(verifierID)
	return nil
}

// RecordRejected records a verifier's reject decision.
func (o *Orchestrator) RecordRejected(verifierID, reportID, reason string) error {
	if err := o.Store.Reject(reportID, reason); err != nil {
		return err
	}
	o.cancelWatchdog(verifierID)
	return nil
}

// verifierDecisionRecorded reports whether reportID has left the pending
// queue, meaning the owning verifier has recorded a decision (or been
// force-timed-out).
func (o *Orchestrator) verifierDecisionRecorded(reportID string) bool {
	report, ok := o.Store.Get(reportID)
	if !ok {
		return false
	}
	return report.VerificationStatus != finding.VerificationPending
}

// AgentFinishGateError is returned by AgentFinishGate when a verifier tries
// to finish before recording its decision. RequiredAction mirrors the
// original implementation's machine-readable hint for what the agent must
// do next.
type AgentFinishGateError struct {
	ReportID       string
	RequiredAction string
}

func (e *AgentFinishGateError) Error() string {
	return fmt.Sprintf("verify: agent_finish blocked for report %s: %s", e.ReportID, e.RequiredAction)
}

// AgentFinishGate enforces that a verification-type agent cannot call
// agent_finish until its report has left the pending queue. Non-verifier
// agents are unaffected: callers should only invoke this for agents whose
// graph.NodeType is "verification".
func (o *Orchestrator) AgentFinishGate(agentID string) error {
	o.mu.Lock()
	reportID, isVerifier := o.verifierToReport[agentID]
	o.mu.Unlock()
	if !isVerifier {
		return nil
	}
	if o.verifierDecisionRecorded(reportID) {
		return nil
	}
	return &AgentFinishGateError{
		ReportID:       reportID,
		RequiredAction: "call verify_vulnerability_report or reject_vulnerability_report before agent_finish",
	}
}

// RootFinishGateError explains why finish_scan was blocked.
type RootFinishGateError struct {
	ActiveAgents  []string
	PendingCount  int
}

func (e *RootFinishGateError) Error() string {
	if len(e.ActiveAgents) > 0 {
		return fmt.Sprintf("verify: finish_scan blocked: %d agent(s) still active: %v", len(e.ActiveAgents), e.ActiveAgents)
	}
	return fmt.Sprintf("verify: finish_scan blocked: %d report(s) still pending verification", e.PendingCount)
}

// RootFinishGate enforces spec.md §4.8/§8 S4: the root agent may only
// finish_scan once no non-root agent is running or stopping, and the
// pending-findings queue is empty.
func (o *Orchestrator) RootFinishGate() error {
	if active := o.Graph.ActiveNonRootAgents(); len(active) > 0 {
		return &RootFinishGateError{ActiveAgents: active}
	}
	if n := o.Store.PendingCount(); n > 0 {
		return &RootFinishGateError{PendingCount: n}
	}
	return nil
}
