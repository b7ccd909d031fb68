package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

// Scenario is an ordered list of cache operations with expected outcomes.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	Steps []Step `yaml:"steps"`
}

// Step is one store operation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Text is hashed to address the row. Exclusive with Fingerprint.
	Text string `yaml:"text,omitempty"`

	// Fingerprint addresses the row directly and is not validated on load.
	Fingerprint string `yaml:"fingerprint,omitempty"`

	// Record is the payload for put and merge, in the stored JSON shape.
	Record map[string]any `yaml:"record,omitempty"`

	// Expect is checked after the step runs. Nil means "must succeed".
	Expect *Expect `yaml:"expect,omitempty"`

	rec *record.Record
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Error is a store.Outcome name; empty means success.
	Error string `yaml:"error,omitempty"`

	// Exists is the expected answer of an exists step.
	Exists *bool `yaml:"exists,omitempty"`

	// Entries is the expected entry count of a get step.
	Entries *int `yaml:"entries,omitempty"`

	// Categories is the expected entry categories of a get step, in order.
	Categories []string `yaml:"categories,omitempty"`
}

// Step operations.
const (
	OpExists    = "exists"
	OpGet       = "get"
	OpPut       = "put"
	OpMerge     = "merge"
	OpBootstrap = "bootstrap"
)

var validOps = []string{OpExists, OpGet, OpPut, OpMerge, OpBootstrap}

var validErrors = []string{"not_found", "invalid_fingerprint", "backend_unavailable", "serialization"}

// Key returns the fingerprint the step addresses.
func (s Step) Key() fingerprint.Fingerprint {
	if s.Text != "" {
		return fingerprint.Compute(s.Text)
	}
	return fingerprint.Fingerprint(s.Fingerprint)
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and decodes step records.
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

	for i := range s.Steps {
		if err := validateStep(&s.Steps[i]); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Steps[i].Op, err)
		}
	}
	return nil
}

func validateStep(st *Step) error {
	if !slices.Contains(validOps, st.Op) {
		return fmt.Errorf("op must be one of %v", validOps)
	}

	if st.Op != OpBootstrap {
		if (st.Text == "") == (st.Fingerprint == "") {
			return fmt.Errorf("exactly one of text or fingerprint is required")
		}
	}

	switch st.Op {
	case OpPut, OpMerge:
		if st.Record == nil {
			return fmt.Errorf("record is required")
		}
		rec, err := decodeRecord(st.Record)
		if err != nil {
			return err
		}
		st.rec = rec
	default:
		if st.Record != nil {
			return fmt.Errorf("record is only allowed on put and merge")
		}
	}

	if st.Expect == nil {
		return nil
	}
	if st.Expect.Error != "" && !slices.Contains(validErrors, st.Expect.Error) {
		return fmt.Errorf("expect.error must be one of %v", validErrors)
	}
	if st.Expect.Exists != nil && st.Op != OpExists {
		return fmt.Errorf("expect.exists is only allowed on exists")
	}
	if (st.Expect.Entries != nil || st.Expect.Categories != nil) && st.Op != OpGet {
		return fmt.Errorf("expect.entries and expect.categories are only allowed on get")
	}
	return nil
}

// decodeRecord converts a YAML record into a record.Record by way of its
// JSON payload form, applying the same schema check as the CLI.
func decodeRecord(raw map[string]any) (*record.Record, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	if err := record.CheckSchema(payload); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return record.Decode(payload)
}
