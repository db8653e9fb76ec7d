package finding

import (
	"fmt"
	"sync"
	"time"
)

// VerificationStatus is the one-way state a reported vulnerability moves
// through: every report starts pending and ends in exactly one of the
// three terminal queues. No transition ever moves a report backward.
type VerificationStatus string

const (
	VerificationPending           VerificationStatus = "pending"
	VerificationVerified          VerificationStatus = "verified"
	VerificationRejected          VerificationStatus = "rejected"
	VerificationNeedsManualReview VerificationStatus = "needs_manual_review"
)

// IsValid reports whether s is one of the defined statuses.
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected, VerificationNeedsManualReview:
		return true
	default:
		return false
	}
}

// minClaimAssertionChars is the minimum length of a report's claim
// assertion, the one-sentence statement of what the reporter believes is
// exploitable.
const minClaimAssertionChars = 20

// VerificationEvidence is the two-phase decision record a verifier agent
// produces before agent_finish is permitted to succeed for it (spec.md
// §4.8).
type VerificationEvidence struct {
	Phase1ReproductionCount int    `json:"phase1_reproduction_count"`
	Phase1Notes             string `json:"phase1_notes,omitempty"`

	Phase2ValidityConfirmed       bool     `json:"phase2_validity_confirmed"`
	Phase2IndependentControlTests []string `json:"phase2_independent_control_tests"`
	Phase2ValidityReasoning       string   `json:"phase2_validity_reasoning"`
}

// MeetsAcceptanceCriteria reports whether the two-phase evidence clears
// the bar spec.md §4.8 sets for recording a verification decision:
// reproduction_count >= 3, validity_confirmed is true, and the independent
// control tests and reasoning are both non-empty.
func (v VerificationEvidence) MeetsAcceptanceCriteria() bool {
	return v.Phase1ReproductionCount >= 3 &&
		v.Phase2ValidityConfirmed &&
		len(v.Phase2IndependentControlTests) > 0 &&
		v.Phase2ValidityReasoning != ""
}

// VulnReport is a reported vulnerability moving through the verification
// pipeline: the teacher's rich Finding model, this spec's stricter
// evidence package, and the verification bookkeeping spec.md §3/§4.7/§4.8
// require.
type VulnReport struct {
	*Finding

	TypeID string `json:"type_id"`

	ClaimAssertion string `json:"claim_assertion"`

	Evidence VulnerabilityEvidence `json:"evidence"`

	VerificationStatus     VerificationStatus    `json:"verification_status"`
	VerificationAttempts   int                   `json:"verification_attempts"`
	VerificationEvidence   *VerificationEvidence `json:"verification_evidence,omitempty"`
	RejectionReason        string                `json:"rejection_reason,omitempty"`
	VerifierAgentID        string                `json:"verifier_agent_id,omitempty"`
}

// Validate checks the report's claim assertion length and evidence shape.
// Vulnerability-type-specific control test coverage is checked separately
// via VulnTypeRegistry.ValidateControlTests, since it needs the registry.
func (r *VulnReport) Validate() error {
	if len(r.ClaimAssertion) < minClaimAssertionChars {
		return fmt.Errorf("vuln report: claim_assertion must be at least %d characters", minClaimAssertionChars)
	}
	if err := r.Evidence.Validate(); err != nil {
		return err
	}
	return nil
}

// Store is the process-global, four-queue home for reported
// vulnerabilities: pending, verified, rejected, needs_manual_review. A
// single mutex guards all queue membership and the ID counter, so queue
// moves are always atomic with respect to a concurrent finish_scan
// pending-queue check.
type Store struct {
	mu      sync.Mutex
	nextID  int
	reports map[string]*VulnReport
}

// NewStore constructs an empty finding store.
func NewStore() *Store {
	return &Store{reports: make(map[string]*VulnReport)}
}

// allocateID returns the next vuln-NNNN identifier, zero-padded to four
// digits (falling back to the raw number past 9999 rather than truncating
// it).
func (s *Store) allocateID() string {
	s.nextID++
	return fmt.Sprintf("vuln-%04d", s.nextID)
}

// Submit validates and records a new report in the pending queue,
// allocating its vuln-NNNN ID.
func (s *Store) Submit(r *VulnReport) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocateID()
	r.ID = id
	r.VerificationStatus = VerificationPending
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.reports[id] = r
	return id, nil
}

// Get returns the report for id.
func (s *Store) Get(id string) (*VulnReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	return r, ok
}

// IncrementVerificationAttempt bumps id's attempt counter and returns the
// new value.
func (s *Store) IncrementVerificationAttempt(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return 0, fmt.Errorf("finding store: unknown report %s", id)
	}
	r.VerificationAttempts++
	r.UpdatedAt = time.Now()
	return r.VerificationAttempts, nil
}

// Verify moves id from pending to the verified queue, recording its
// two-phase evidence. Returns an error if id is not currently pending or
// if the evidence does not meet the acceptance criteria.
func (s *Store) Verify(id string, evidence VerificationEvidence) error {
	if !evidence.MeetsAcceptanceCriteria() {
		return fmt.Errorf("finding store: verification evidence for %s does not meet acceptance criteria", id)
	}
	return s.transition(id, VerificationVerified, func(r *VulnReport) {
		r.VerificationEvidence = &evidence
	})
}

// Reject moves id from pending to the rejected queue with a reason.
func (s *Store) Reject(id, reason string) error {
	return s.transition(id, VerificationRejected, func(r *VulnReport) {
		r.RejectionReason = reason
	})
}

// MoveToManualReview moves id from pending to the needs_manual_review
// queue, used when a verifier times out, errors, or exhausts its
// iterations without recording a decision.
func (s *Store) MoveToManualReview(id, reason string) error {
	return s.transition(id, VerificationNeedsManualReview, func(r *VulnReport) {
		r.RejectionReason = reason
	})
}

func (s *Store) transition(id string, to VerificationStatus, mutate func(*VulnReport)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return fmt.Errorf("finding store: unknown report %s", id)
	}
	if r.VerificationStatus != VerificationPending {
		return fmt.Errorf("finding store: report %s is not pending (status=%s)", id, r.VerificationStatus)
	}
	mutate(r)
	r.VerificationStatus = to
	r.UpdatedAt = time.Now()
	return nil
}

// PendingCount returns the number of reports still in the pending queue,
// the value finish_scan's gate checks is zero (spec.md §4.8, §8 S4).
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reports {
		if r.VerificationStatus == VerificationPending {
			n++
		}
	}
	return n
}

// ListByStatus returns every report currently in the given queue.
func (s *Store) ListByStatus(status VerificationStatus) []*VulnReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*VulnReport
	for _, r := range s.reports {
		if r.VerificationStatus == status {
			out = append(out, r)
		}
	}
	return out
}

// Counts returns the number of reports in each of the four queues.
func (s *Store) Counts() map[VerificationStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[VerificationStatus]int{
		VerificationPending:           0,
		VerificationVerified:          0,
		VerificationRejected:          0,
		VerificationNeedsManualReview: 0,
	}
	for _, r := range s.reports {
		counts[r.VerificationStatus]++
	}
	return counts
}
