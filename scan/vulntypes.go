package scan

import "github.com/strix-run/orchestrator/finding"

// defaultVulnTypes is the built-in vulnerability type catalog used when a
// Controller is constructed without an explicit finding.VulnTypeRegistry.
// It covers the small set of web vulnerability classes common enough to
// need no further configuration for a first scan; production deployments
// are expected to load a fuller registry via finding.LoadVulnTypeRegistry.
func defaultVulnTypes() []finding.VulnTypeDef {
	return []finding.VulnTypeDef{
		{
			TypeID:        "sql_injection",
			DisplayName:   "SQL Injection",
			SemanticClaim: "Unsanitized input reaches a SQL query in a way that alters its structure.",
			RequiredControlTests: []string{
				"boolean_based_differential", "time_based_blind",
			},
			ValidityCriteria: "negative_control_passed && reproduction_step_count >= 1",
		},
		{
			TypeID:        "cross_site_scripting",
			DisplayName:   "Cross-Site Scripting",
			SemanticClaim: "Unsanitized input is reflected or stored and executes as script in a victim's browser context.",
			RequiredControlTests: []string{
				"payload_reflection", "context_breakout",
			},
			ValidityCriteria: "negative_control_passed && reproduction_step_count >= 1",
		},
		{
			TypeID:        "idor",
			DisplayName:   "Insecure Direct Object Reference",
			SemanticClaim: "An authenticated identity can access another identity's resource by only changing an identifier.",
			RequiredControlTests: []string{
				"cross_account_access", "authorization_boundary",
			},
			ValidityCriteria: "negative_control_passed && reproduction_step_count >= 1",
		},
		{
			TypeID:        "ssrf",
			DisplayName:   "Server-Side Request Forgery",
			SemanticClaim: "The server can be induced to issue a request to an attacker-chosen destination.",
			RequiredControlTests: []string{
				"internal_target_reachability", "external_callback_confirmation",
			},
			ValidityCriteria: "negative_control_passed && reproduction_step_count >= 1",
		},
		{
			TypeID:        "auth_bypass",
			DisplayName:   "Authentication Bypass",
			SemanticClaim: "A protected resource or action is reachable without valid authentication.",
			RequiredControlTests: []string{
				"unauthenticated_access", "session_invalidation_check",
			},
			ValidityCriteria: "negative_control_passed && reproduction_step_count >= 1",
		},
	}
}
