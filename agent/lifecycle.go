package agent

// Status represents the lifecycle state of a running orchestration agent.
//
// Transitions: created -> running <-> waiting -> {completed, stopped,
// failed, llm_failed, timeout}. The transient "stopping" status sits
// between running/waiting and stopped: it marks that StopAgent has been
// called but the agent's current tool wave has not yet unwound.
type Status string

const (
	// StatusCreated is the status of a freshly constructed agent that has
	// not yet entered its loop.
	StatusCreated Status = "created"

	// StatusRunning is the status while the agent loop is actively
	// producing and dispatching tool invocations.
	StatusRunning Status = "running"

	// StatusWaiting is the status while the agent has suspended itself
	// pending a mailbox message (see State.EnterWaitingState).
	StatusWaiting Status = "waiting"

	// StatusStopping marks that a stop has been requested but the agent's
	// in-flight tool wave has not yet been cancelled.
	StatusStopping Status = "stopping"

	// StatusCompleted is a terminal status: the agent finished its task
	// successfully.
	StatusCompleted Status = "completed"

	// StatusStopped is a terminal status: the agent was cancelled by a stop
	// request before it finished.
	StatusStopped Status = "stopped"

	// StatusFailed is a terminal status: the agent loop raised an
	// unrecoverable error.
	StatusFailed Status = "failed"

	// StatusLLMFailed is a terminal status: the LLM client returned a
	// failure kind that the loop cannot retry past.
	StatusLLMFailed Status = "llm_failed"

	// StatusTimeout is a terminal status: the agent sat in StatusWaiting
	// past the waiting-state idle timeout.
	StatusTimeout Status = "timeout"
)

// IsTerminal reports whether the status ends the agent's loop.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusStopped, StatusFailed, StatusLLMFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is one of the defined status constants.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusWaiting, StatusStopping,
		StatusCompleted, StatusStopped, StatusFailed, StatusLLMFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
