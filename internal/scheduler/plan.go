package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
)

// TaskSpec describes one task of a plan before execution. Plans are the
// construction input for graphs: an ordered list of specs supplied by the
// caller (or read from a plan file) before the run starts.
type TaskSpec struct {
	ID        string   `json:"id"`
	Operation string   `json:"operation"`
	Input     string   `json:"input"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// BuildGraph constructs a graph from specs in order and validates it.
// Construction fails on the first duplicate ID, unknown dependency or cycle.
func BuildGraph(specs []TaskSpec) (*Graph, error) {
	g := NewGraph()

	for _, spec := range specs {
		task := &Task{
			ID:        spec.ID,
			Operation: spec.Operation,
			RawInput:  spec.Input,
			DependsOn: spec.DependsOn,
		}
		if err := g.AddTask(task); err != nil {
			return nil, err
		}
	}

	if _, err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// LoadPlan reads a JSON plan file: an array of task spec objects.
func LoadPlan(path string) ([]TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a JSON plan document.
func ParsePlan(data []byte) ([]TaskSpec, error) {
	var specs []TaskSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("plan contains no tasks")
	}
	for i, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("plan task at index %d has no id", i)
		}
		if spec.Operation == "" {
			return nil, fmt.Errorf("plan task %q has no operation", spec.ID)
		}
	}
	return specs, nil
}
