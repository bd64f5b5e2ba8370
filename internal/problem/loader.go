package problem

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MethodSpec selects and configures the study method in a problem file.
// Only the fields relevant to the chosen type need to be set.
type MethodSpec struct {
	Type string `yaml:"type" json:"type"` // conmin, multidim, vector, sampling

	// Optimizer settings (conmin).
	MaxFunctionEvaluations int     `yaml:"max_function_evaluations,omitempty" json:"max_function_evaluations,omitempty"`
	ConstraintTolerance    float64 `yaml:"constraint_tolerance,omitempty" json:"constraint_tolerance,omitempty"`

	// Parameter study settings.
	Partitions []int     `yaml:"partitions,omitempty" json:"partitions,omitempty"`
	FinalPoint []float64 `yaml:"final_point,omitempty" json:"final_point,omitempty"`
	NumSteps   int       `yaml:"num_steps,omitempty" json:"num_steps,omitempty"`

	// Sampling settings.
	SampleType string `yaml:"sample_type,omitempty" json:"sample_type,omitempty"`
	Seed       int    `yaml:"seed,omitempty" json:"seed,omitempty"`
	Samples    int    `yaml:"samples,omitempty" json:"samples,omitempty"`
}

// File is the on-disk problem definition: the declarative problem plus
// the study method to apply to it. Run-level settings (executable path,
// iteration limit, tolerances, output files) are supplied separately by
// the caller.
type File struct {
	Parameters  []Parameter  `yaml:"parameters" json:"parameters"`
	Objectives  []Objective  `yaml:"objectives" json:"objectives"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Method      MethodSpec   `yaml:"method" json:"method"`
}

// Problem extracts the declarative problem from the file.
func (f *File) Problem() *Problem {
	return &Problem{
		Parameters:  f.Parameters,
		Objectives:  f.Objectives,
		Constraints: f.Constraints,
	}
}

// Load reads and parses a problem file. The problem is not validated
// here; validation happens in Driver.Configure so that programmatic and
// file-based declarations go through the same checks.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file %s: %w", path, err)
	}
	file, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse problem file %s: %w", path, err)
	}
	return file, nil
}

// ParseYAML parses a problem definition from YAML bytes.
func ParseYAML(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Method.Type == "" {
		return nil, fmt.Errorf("method.type is required")
	}
	return &file, nil
}
