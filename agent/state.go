package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strix-run/orchestrator/llm"
)

// waitingTimeout is the maximum duration an agent may sit in StatusWaiting
// before the loop forces it into StatusTimeout. It is checked unconditionally
// whenever the agent is waiting, regardless of resume conditions or pending
// mailbox traffic.
const waitingTimeout = 600 * time.Second

// approachingMaxIterationsThreshold is the fraction of MaxIterations at
// which State.IsApproachingMaxIterations starts returning true, so the loop
// can inject a warning message before the hard cutoff.
const approachingMaxIterationsThreshold = 0.85

// ActionRecord is one dispatched tool invocation and its outcome, kept on
// the state for execution-summary reporting.
type ActionRecord struct {
	ToolName  string
	Arguments map[string]any
	Result    any
	Error     string
	Timestamp time.Time
}

// State is the mutable run state of one orchestration agent: its
// conversation history, iteration counter, waiting/stop flags, and
// bookkeeping needed to resume or terminate its loop. One State exists per
// agent for its entire lifetime; State.mu guards every field because
// StopAgent and SendMessage mutate it from the graph runtime's goroutine
// while the agent's own loop goroutine reads and advances it concurrently.
type State struct {
	mu sync.Mutex

	AgentID   string
	AgentName string
	AgentType string

	Status Status

	IterationCount int
	MaxIterations  int

	Messages     []llm.Message
	Actions      []ActionRecord
	Observations []string
	Errors       []string

	Context map[string]any

	CreatedAt   time.Time
	LastUpdated time.Time

	WaitingSince     *time.Time
	WaitingReason    string
	ResumeConditions []string

	stopRequested bool
	cancelled     bool
	taskCompleted bool
	errorOccurred bool
}

// NewState constructs a fresh State in StatusCreated with the given
// iteration budget. maxIterations <= 0 falls back to 300, matching the
// default orchestration agents use when no explicit budget is configured.
func NewState(agentName string, maxIterations int) *State {
	if maxIterations <= 0 {
		maxIterations = 300
	}
	now := time.Now()
	return &State{
		AgentID:       fmt.Sprintf("agent_%s", uuid.New().String()),
		AgentName:     agentName,
		Status:        StatusCreated,
		MaxIterations: maxIterations,
		Context:       make(map[string]any),
		CreatedAt:     now,
		LastUpdated:   now,
	}
}

func (s *State) touch() {
	s.LastUpdated = time.Now()
}

// IncrementIteration advances the iteration counter by one.
func (s *State) IncrementIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IterationCount++
	s.touch()
	return s.IterationCount
}

// AddMessage appends a message to the conversation history.
func (s *State) AddMessage(m llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
	s.touch()
}

// AddAction records a dispatched tool invocation.
func (s *State) AddAction(a ActionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	s.Actions = append(s.Actions, a)
	s.touch()
}

// AddObservation records a free-text observation surfaced back to the
// agent (a tool result summary, a delegated-agent completion report).
func (s *State) AddObservation(o string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Observations = append(s.Observations, o)
	s.touch()
}

// AddError records an error encountered during the loop without
// necessarily ending it (see handleLLMError in loop.go for the
// decision of when an error becomes terminal).
func (s *State) AddError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, msg)
	s.errorOccurred = true
	s.touch()
}

// UpdateContext sets a key in the agent's free-form context map.
func (s *State) UpdateContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
	s.Context[key] = value
	s.touch()
}

// SetCompleted marks the agent as finished, either successfully or not.
func (s *State) SetCompleted(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.taskCompleted = status == StatusCompleted
	s.touch()
}

// RequestStop asks the agent to stop at the next cooperative checkpoint. It
// is idempotent: calling it on an already-terminal agent is a no-op.
func (s *State) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.IsTerminal() {
		return
	}
	s.stopRequested = true
	s.cancelled = true
	if s.Status != StatusStopping {
		s.Status = StatusStopping
	}
	s.touch()
}

// ShouldStop reports whether a stop has been requested and not yet
// finalized into a terminal status.
func (s *State) ShouldStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested && !s.Status.IsTerminal()
}

// IsWaitingForInput reports whether the agent is currently suspended
// awaiting a mailbox message.
func (s *State) IsWaitingForInput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status == StatusWaiting
}

// EnterWaitingState suspends the agent, recording why it is waiting and
// what would resume it.
func (s *State) EnterWaitingState(reason string, resumeConditions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.Status = StatusWaiting
	s.WaitingSince = &now
	s.WaitingReason = reason
	s.ResumeConditions = resumeConditions
	s.touch()
}

// ResumeFromWaiting clears the waiting bookkeeping and returns the agent to
// StatusRunning. It is a no-op if the agent was not waiting.
func (s *State) ResumeFromWaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusWaiting {
		return
	}
	s.Status = StatusRunning
	s.WaitingSince = nil
	s.WaitingReason = ""
	s.ResumeConditions = nil
	s.touch()
}

// HasReachedMaxIterations reports whether the iteration budget is
// exhausted.
func (s *State) HasReachedMaxIterations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IterationCount >= s.MaxIterations
}

// IsApproachingMaxIterations reports whether the agent has crossed the 85%
// mark of its iteration budget, the point at which the loop injects a
// warning message urging the agent to wrap up.
func (s *State) IsApproachingMaxIterations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MaxIterations <= 0 {
		return false
	}
	return float64(s.IterationCount) >= float64(s.MaxIterations)*approachingMaxIterationsThreshold
}

// HasWaitingTimeout reports whether the agent has been waiting longer than
// waitingTimeout. This check is unconditional: it ignores resume
// conditions, waiting reason, or any other flag, matching the original
// implementation's explicit note that the waiting-state idle timeout is a
// hard backstop independent of what the agent is waiting for.
func (s *State) HasWaitingTimeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusWaiting || s.WaitingSince == nil {
		return false
	}
	return time.Since(*s.WaitingSince) > waitingTimeout
}

// HasEmptyLastMessages reports whether the most recent assistant message in
// the conversation history has neither content nor tool calls, the signal
// used to detect a degenerate LLM response and inject a corrective message.
func (s *State) HasEmptyLastMessages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Messages) == 0 {
		return false
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != llm.RoleAssistant {
		return false
	}
	return last.Content == "" && len(last.ToolCalls) == 0
}

// GetConversationHistory returns a copy of the message history.
func (s *State) GetConversationHistory() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// ReplaceConversationHistory atomically swaps the message history, so a
// caller can install a rewritten history in place without racing a
// concurrent AddMessage.
func (s *State) ReplaceConversationHistory(messages []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = messages
	s.touch()
}

// ExecutionSummary is a read-only snapshot of a State suitable for
// reporting or for handing to a parent agent as a completion report.
type ExecutionSummary struct {
	AgentID        string
	AgentName      string
	Status         Status
	IterationCount int
	MaxIterations  int
	ActionCount    int
	ErrorCount     int
	TaskCompleted  bool
	ErrorOccurred  bool
	Cancelled      bool
	CreatedAt      time.Time
	LastUpdated    time.Time
}

// GetExecutionSummary snapshots the state's bookkeeping fields.
func (s *State) GetExecutionSummary() ExecutionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExecutionSummary{
		AgentID:        s.AgentID,
		AgentName:      s.AgentName,
		Status:         s.Status,
		IterationCount: s.IterationCount,
		MaxIterations:  s.MaxIterations,
		ActionCount:    len(s.Actions),
		ErrorCount:     len(s.Errors),
		TaskCompleted:  s.taskCompleted,
		ErrorOccurred:  s.errorOccurred,
		Cancelled:      s.cancelled,
		CreatedAt:      s.CreatedAt,
		LastUpdated:    s.LastUpdated,
	}
}

// snapshotResumeConditions returns a copy of the current resume conditions
// list under lock, used by the loop to decide whether an inbound message
// should resume a waiting agent.
func (s *State) snapshotResumeConditions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ResumeConditions))
	copy(out, s.ResumeConditions)
	return out
}

// CurrentStatus returns the agent's current status under lock.
func (s *State) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// SetStatus sets the status directly. Used for transitions (e.g. created ->
// running) that aren't covered by one of the named helpers above.
func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.touch()
}
