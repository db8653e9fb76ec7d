// Package graph implements the process-wide agent delegation graph and the
// per-agent mailboxes used for inter-agent messaging.
package graph

import (
	"fmt"
	"sync"
	"time"
)

// EnvelopeKind distinguishes the origin of a mailbox envelope, which
// controls how the agent loop frames it back into the conversation.
type EnvelopeKind string

const (
	// KindUser is a message injected by the operator/CLI.
	KindUser EnvelopeKind = "user"

	// KindAgent is a message sent by another orchestration agent.
	KindAgent EnvelopeKind = "agent"

	// KindSystem is a message generated by the runtime itself (a stop
	// notice, a completion report relayed from a child).
	KindSystem EnvelopeKind = "system"
)

// Priority orders envelope delivery within a tick; higher values are
// delivered first.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// Envelope is one message sitting in an agent's mailbox.
type Envelope struct {
	Kind      EnvelopeKind
	Priority  Priority
	From      string
	To        string
	Content   string
	Timestamp time.Time
	Delivered bool
	Read      bool
}

// Mailbox is a per-agent envelope queue ordered by priority, FIFO within
// equal priority. It is safe for concurrent use: the owning agent drains
// it from its own loop goroutine while other agents push to it from
// theirs.
type Mailbox struct {
	mu        sync.Mutex
	envelopes []Envelope
}

// NewMailbox constructs an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Push enqueues an envelope, inserting it after any higher-or-equal
// priority envelopes already queued to preserve priority-then-FIFO order.
func (m *Mailbox) Push(e Envelope) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.envelopes)
	for i, existing := range m.envelopes {
		if existing.Priority < e.Priority {
			idx = i
			break
		}
	}
	m.envelopes = append(m.envelopes, Envelope{})
	copy(m.envelopes[idx+1:], m.envelopes[idx:])
	m.envelopes[idx] = e
}

// Drain removes and returns every envelope currently queued, marking each
// delivered. Called at the top of an agent loop tick (see agent.Tick).
func (m *Mailbox) Drain() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.envelopes
	for i := range out {
		out[i].Delivered = true
	}
	m.envelopes = nil
	return out
}

// Peek returns a copy of the queued envelopes without removing them.
func (m *Mailbox) Peek() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.envelopes))
	copy(out, m.envelopes)
	return out
}

// Len reports the number of envelopes currently queued.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.envelopes)
}

// FormatForDelivery wraps an envelope's content the way the agent loop
// presents it back into the recipient's conversation: inter-agent messages
// are wrapped in an <inter_agent_message> tag carrying the sender, plain
// user messages are delivered as-is.
func (e Envelope) FormatForDelivery() string {
	switch e.Kind {
	case KindAgent, KindSystem:
		return fmt.Sprintf("<inter_agent_message from=%q>\n%s\n</inter_agent_message>", e.From, e.Content)
	default:
		return e.Content
	}
}
