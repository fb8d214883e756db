package story

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPlan reads a plan from a YAML or JSON file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("story: failed to read plan %s: %w", path, err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a plan document. JSON documents are accepted since
// they are valid YAML.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("story: failed to parse plan: %w", err)
	}
	plan.Format = ParseImageFormat(string(plan.Format))
	return &plan, nil
}

// LoadConsistency reads consistency data from a YAML or JSON file.
func LoadConsistency(path string) (*Consistency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("story: failed to read consistency data %s: %w", path, err)
	}
	var c Consistency
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("story: failed to parse consistency data: %w", err)
	}
	return &c, nil
}
