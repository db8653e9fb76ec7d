package scan

import (
	"context"
	"time"

	"github.com/strix-run/orchestrator/agent"
)

// mailboxPollInterval is how long the loop sleeps between ticks while an
// agent is suspended waiting for a mailbox message (spec.md §5).
const mailboxPollInterval = 500 * time.Millisecond

// runAgentLoop drives one agent's Tick loop to completion on the calling
// goroutine. Callers that want concurrency (every delegated or verifier
// agent) launch this with `go`.
func runAgentLoop(ctx context.Context, state *agent.State, svc agent.Services) {
	state.SetStatus(agent.StatusRunning)
	for {
		outcome, err := agent.Tick(ctx, state, svc)
		if err != nil {
			state.AddError(err.Error())
			state.SetCompleted(agent.StatusFailed)
			return
		}
		switch outcome {
		case agent.OutcomeTerminal:
			return
		case agent.OutcomeWaiting:
			select {
			case <-ctx.Done():
				state.SetCompleted(agent.StatusStopped)
				return
			case <-time.After(mailboxPollInterval):
			}
		case agent.OutcomeContinue:
			if ctx.Err() != nil {
				state.RequestStop()
			}
		}
	}
}
