package finding

import (
	"fmt"
	"strings"
)

// minNegativeControlDescriptionChars is the minimum length required for a
// negative-control description to be considered meaningful rather than a
// placeholder string.
const minNegativeControlDescriptionChars = 20

// HTTPExchange is the captured request/response pair proving a
// vulnerability was triggered.
type HTTPExchange struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	RequestBody    string            `json:"request_body,omitempty"`
	StatusCode     int               `json:"status_code"`
	ResponseBody   string            `json:"response_body,omitempty"`
}

// Validate checks the exchange carries the minimum fields needed to be
// reproducible evidence.
func (h HTTPExchange) Validate() error {
	if h.Method == "" {
		return fmt.Errorf("http exchange: method is required")
	}
	if h.URL == "" {
		return fmt.Errorf("http exchange: url is required")
	}
	if h.StatusCode == 0 {
		return fmt.Errorf("http exchange: status_code is required")
	}
	return nil
}

// ReproStep is one sequentially numbered step in reproducing the
// vulnerability.
type ReproStep struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
}

// ControlTest is one independent test a reporter ran to rule out false
// positives, each of which must conclude "vulnerable" for the finding to
// be acceptable evidence.
type ControlTest struct {
	Name       string `json:"name"`
	Conclusion string `json:"conclusion"`
}

// ConclusionVulnerable is the only acceptable ControlTest.Conclusion value
// for evidence supporting a reported vulnerability.
const ConclusionVulnerable = "vulnerable"

// VulnerabilityEvidence is the strict evidence package a reported finding
// must carry before it can leave the pending queue. Every field below is
// required by spec.md §3/§7's evidence_validation_error rules, ported from
// the original implementation's Pydantic evidence model.
type VulnerabilityEvidence struct {
	HTTPExchange                 HTTPExchange  `json:"http_exchange"`
	ReproductionSteps            []ReproStep   `json:"reproduction_steps"`
	PoCPayload                   string        `json:"poc_payload"`
	TargetURL                    string        `json:"target_url"`
	NegativeControlPassed        bool          `json:"negative_control_passed"`
	NegativeControlDescription   string        `json:"negative_control_description"`
	ControlTests                 []ControlTest `json:"control_tests"`
}

// Validate applies every structural rule spec.md requires of reported
// evidence, independent of the vulnerability type's own required control
// test names (see VulnTypeRegistry.ValidateControlTests for that check).
func (e VulnerabilityEvidence) Validate() error {
	if err := e.HTTPExchange.Validate(); err != nil {
		return err
	}
	if len(e.ReproductionSteps) == 0 {
		return fmt.Errorf("evidence: at least one reproduction step is required")
	}
	for i, step := range e.ReproductionSteps {
		if step.StepNumber != i+1 {
			return fmt.Errorf("evidence: reproduction steps must be sequentially numbered starting at 1, step %d has number %d", i+1, step.StepNumber)
		}
		if strings.TrimSpace(step.Description) == "" {
			return fmt.Errorf("evidence: reproduction step %d has an empty description", step.StepNumber)
		}
	}
	if strings.TrimSpace(e.PoCPayload) == "" {
		return fmt.Errorf("evidence: poc_payload is required")
	}
	if strings.TrimSpace(e.TargetURL) == "" {
		return fmt.Errorf("evidence: target_url is required")
	}
	if !e.NegativeControlPassed {
		return fmt.Errorf("evidence: negative_control_passed must be true")
	}
	if len(strings.TrimSpace(e.NegativeControlDescription)) < minNegativeControlDescriptionChars {
		return fmt.Errorf("evidence: negative_control_description must be at least %d characters", minNegativeControlDescriptionChars)
	}
	if len(e.ControlTests) == 0 {
		return fmt.Errorf("evidence: at least one control test is required")
	}
	for _, ct := range e.ControlTests {
		if ct.Conclusion != ConclusionVulnerable {
			return fmt.Errorf("evidence: control test %q did not conclude %q", ct.Name, ConclusionVulnerable)
		}
	}
	return nil
}

// controlTestNameSet returns the normalized (lowercased, trimmed) set of
// control test names actually performed.
func (e VulnerabilityEvidence) controlTestNameSet() map[string]bool {
	set := make(map[string]bool, len(e.ControlTests))
	for _, ct := range e.ControlTests {
		set[normalizeControlTestName(ct.Name)] = true
	}
	return set
}

func normalizeControlTestName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
