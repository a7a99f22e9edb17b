package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted questionnaire session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SessionKey is the fixed create idempotency key.
	// If empty, defaults to "test-session-default".
	SessionKey string `yaml:"session_key,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final remote and local state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one of Submit, Remote, Local or
// Reset is set.
type Step struct {
	// Submit is the field group to submit.
	Submit string `yaml:"submit,omitempty"`

	// Values are the submitted answers. Integers, strings, booleans and
	// null only.
	Values map[string]any `yaml:"values,omitempty"`

	// Expect checks the submit outcome. If nil, any outcome is accepted.
	Expect *Expect `yaml:"expect,omitempty"`

	// Remote injects a remote failure: "fail" or "lose_response".
	Remote string `yaml:"remote,omitempty"`

	// Count is the number of failing calls for remote: fail.
	Count int `yaml:"count,omitempty"`

	// Local switches local write failures: "fail_writes" or "recover".
	Local string `yaml:"local,omitempty"`

	// Reset clears the local store.
	Reset bool `yaml:"reset,omitempty"`
}

// Expect describes the expected submit outcome.
type Expect struct {
	// Outcome is "ok", "sync_error" or "storage_error".
	Outcome string `yaml:"outcome"`

	// FormID is the expected returned identifier (ok only).
	FormID string `yaml:"form_id,omitempty"`

	// Code is the expected SyncError code (sync_error only).
	Code string `yaml:"code,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the remote operation (remote_count).
	Op string `yaml:"op,omitempty"`

	// Outcome is the submit outcome (outcome_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number (remote_count, remote_forms, outcome_count).
	Count int `yaml:"count"`

	// Expect is the expected answer subset (final_snapshot).
	Expect map[string]any `yaml:"expect,omitempty"`

	// FormID is the expected stored identifier (form_identifier).
	FormID string `yaml:"form_id,omitempty"`
}

// Assertion type constants.
const (
	AssertRemoteCount    = "remote_count"
	AssertRemoteForms    = "remote_forms"
	AssertFinalSnapshot  = "final_snapshot"
	AssertFormIdentifier = "form_identifier"
	AssertOutcomeCount   = "outcome_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	kinds := 0
	if st.Submit != "" {
		kinds++
	}
	if st.Remote != "" {
		kinds++
	}
	if st.Local != "" {
		kinds++
	}
	if st.Reset {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of submit, remote, local or reset is required", index)
	}

	switch st.Remote {
	case "", "lose_response":
	case "fail":
		if st.Count < 1 {
			return fmt.Errorf("steps[%d]: count must be positive for remote: fail", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown remote injection %q", index, st.Remote)
	}

	switch st.Local {
	case "", "fail_writes", "recover":
	default:
		return fmt.Errorf("steps[%d]: unknown local injection %q", index, st.Local)
	}

	if st.Expect != nil {
		if st.Submit == "" {
			return fmt.Errorf("steps[%d]: expect is only valid on submit", index)
		}
		switch st.Expect.Outcome {
		case OutcomeOK, OutcomeSyncError, OutcomeStorageError:
		default:
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", index, st.Expect.Outcome)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRemoteCount:
		if a.Op != EventCreate && a.Op != EventUpdate {
			return fmt.Errorf("assertions[%d]: op must be create or update for remote_count", index)
		}
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
	case AssertFinalSnapshot:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_snapshot", index)
		}
	case AssertRemoteForms, AssertFormIdentifier:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
