package finding

import (
	"fmt"
	"os"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// VulnTypeDef is one closed catalog entry describing a class of
// vulnerability: its display name, the semantic claim a report of this
// type asserts, the control tests every report must perform, a CEL
// expression over the evidence that must evaluate true for the finding to
// be considered structurally valid, and known false-positive patterns
// surfaced to the reporting agent as guidance.
type VulnTypeDef struct {
	TypeID              string   `yaml:"type_id"`
	DisplayName         string   `yaml:"display_name"`
	SemanticClaim       string   `yaml:"semantic_claim"`
	RequiredControlTests []string `yaml:"required_control_tests"`
	ValidityCriteria     string   `yaml:"validity_criteria"`
	FalsePositivePatterns []string `yaml:"false_positive_patterns"`
}

// VulnTypeRegistry is the closed type_id -> VulnTypeDef catalog.
// ValidityCriteria expressions are compiled once at load time with cel-go
// so that finalize-time validity checks are cheap boolean evaluations
// rather than ad-hoc Go conditionals per type.
type VulnTypeRegistry struct {
	defs     map[string]VulnTypeDef
	programs map[string]cel.Program
}

// celEnv declares the variables a validity_criteria expression may
// reference: the evidence's control test names (as a string list) and
// whether the negative control passed.
func celEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("control_test_names", cel.ListType(cel.StringType)),
		cel.Variable("negative_control_passed", cel.BoolType),
		cel.Variable("reproduction_step_count", cel.IntType),
	)
}

// LoadVulnTypeRegistry parses a YAML catalog file (see DESIGN.md / the
// domain stack wiring table) into a VulnTypeRegistry, compiling every
// entry's validity_criteria expression.
func LoadVulnTypeRegistry(path string) (*VulnTypeRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vulntype: read %s: %w", path, err)
	}

	var raw struct {
		Types []VulnTypeDef `yaml:"types"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("vulntype: parse %s: %w", path, err)
	}

	return NewVulnTypeRegistry(raw.Types)
}

// NewVulnTypeRegistry builds a registry from an in-memory definition list,
// compiling each entry's validity_criteria.
func NewVulnTypeRegistry(defs []VulnTypeDef) (*VulnTypeRegistry, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("vulntype: build cel environment: %w", err)
	}

	r := &VulnTypeRegistry{
		defs:     make(map[string]VulnTypeDef, len(defs)),
		programs: make(map[string]cel.Program, len(defs)),
	}
	for _, d := range defs {
		if d.TypeID == "" {
			return nil, fmt.Errorf("vulntype: entry with empty type_id")
		}
		expr := d.ValidityCriteria
		if expr == "" {
			expr = "negative_control_passed && reproduction_step_count >= 1"
		}
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("vulntype: compile validity_criteria for %s: %w", d.TypeID, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("vulntype: build program for %s: %w", d.TypeID, err)
		}
		r.defs[d.TypeID] = d
		r.programs[d.TypeID] = prg
	}
	return r, nil
}

// Lookup returns the definition for typeID.
func (r *VulnTypeRegistry) Lookup(typeID string) (VulnTypeDef, bool) {
	d, ok := r.defs[typeID]
	return d, ok
}

// ValidateControlTests checks that the evidence's performed control tests
// are a superset of the registry entry's required control test names
// (compared lowercased, with surrounding whitespace trimmed). It does not
// look at the tests' conclusions; VulnerabilityEvidence.Validate checks
// that each one is "vulnerable". This is spec.md §3's control-test
// coverage rule.
func (r *VulnTypeRegistry) ValidateControlTests(typeID string, evidence VulnerabilityEvidence) error {
	def, ok := r.defs[typeID]
	if !ok {
		return fmt.Errorf("vulntype: unknown type_id %q", typeID)
	}

	performed := evidence.controlTestNameSet()
	var missing []string
	for _, required := range def.RequiredControlTests {
		if !performed[normalizeControlTestName(required)] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("vulntype: %s is missing required control tests: %v", typeID, missing)
	}
	return nil
}

// EvaluateValidity runs typeID's compiled validity_criteria expression
// against the evidence and reports whether it holds.
func (r *VulnTypeRegistry) EvaluateValidity(typeID string, evidence VulnerabilityEvidence) (bool, error) {
	prg, ok := r.programs[typeID]
	if !ok {
		return false, fmt.Errorf("vulntype: unknown type_id %q", typeID)
	}

	names := make([]string, 0, len(evidence.ControlTests))
	for _, ct := range evidence.ControlTests {
		names = append(names, ct.Name)
	}

	out, _, err := prg.Eval(map[string]any{
		"control_test_names":      names,
		"negative_control_passed": evidence.NegativeControlPassed,
		"reproduction_step_count": int64(len(evidence.ReproductionSteps)),
	})
	if err != nil {
		return false, fmt.Errorf("vulntype: evaluate validity_criteria for %s: %w", typeID, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("vulntype: validity_criteria for %s did not evaluate to a bool", typeID)
	}
	return result, nil
}

// TypeIDs returns every registered type_id.
func (r *VulnTypeRegistry) TypeIDs() []string {
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	return out
}
