package driver

import (
	"fmt"
	"strings"

	"github.com/openmdao-go/dakota-driver/internal/deck"
	"github.com/openmdao-go/dakota-driver/internal/problem"
)

// Study fills the method and responses sections of the input deck for
// one external-tool method. Configure must validate its own settings
// against the problem and return *problem.ConfigurationError on any
// mismatch.
type Study interface {
	Name() string
	Configure(p *problem.Problem, cfg RunConfig, dk *deck.Deck) error
}

// CONMIN is the gradient-based optimizer method. With inequality
// constraints it selects the method-of-feasible-directions variant,
// without them the Fletcher-Reeves conjugate gradient variant. Exactly
// one objective is supported.
type CONMIN struct {
	MaxFunctionEvaluations int     // default 1000
	ConstraintTolerance    float64 // default 1e-7
}

func (s CONMIN) Name() string { return "conmin" }

func (s CONMIN) Configure(p *problem.Problem, cfg RunConfig, dk *deck.Deck) error {
	if len(p.Objectives) != 1 {
		return &problem.ConfigurationError{
			Field:  "objectives",
			Reason: fmt.Sprintf("conmin supports exactly one objective, got %d", len(p.Objectives)),
		}
	}

	maxEvals := s.MaxFunctionEvaluations
	if maxEvals == 0 {
		maxEvals = 1000
	}
	conTol := s.ConstraintTolerance
	if conTol == 0 {
		conTol = 1e-7
	}

	method := "conmin_frcg"
	if len(p.Constraints) > 0 {
		method = "conmin_mfd"
	}
	dk.Method = []string{
		method,
		fmt.Sprintf("    output = %s", cfg.Output),
		fmt.Sprintf("    max_iterations = %d", cfg.MaxIterations),
		fmt.Sprintf("    max_function_evaluations = %d", maxEvals),
		fmt.Sprintf("    convergence_tolerance = %g", cfg.ConvergenceTolerance),
	}
	if len(p.Constraints) > 0 {
		dk.Method = append(dk.Method,
			fmt.Sprintf("    constraint_tolerance = %g", conTol))
	}

	if err := setVariables(p, dk, true, false); err != nil {
		return err
	}

	dk.Responses = []string{
		fmt.Sprintf("objective_functions = %d", len(p.Objectives)),
	}
	if len(p.Constraints) > 0 {
		dk.Responses = append(dk.Responses,
			fmt.Sprintf("nonlinear_inequality_constraints = %d", len(p.Constraints)))
	}
	dk.Responses = append(dk.Responses,
		"numerical_gradients",
		"    method_source dakota",
		fmt.Sprintf("    interval_type %s", cfg.Interval),
		fmt.Sprintf("    fd_gradient_step_size = %g", cfg.FDStepSize),
		"    no_hessians",
	)
	return nil
}

// MultidimStudy evaluates the objective on a full-factorial grid with
// the given number of partitions per parameter.
type MultidimStudy struct {
	Partitions []int
}

func (s MultidimStudy) Name() string { return "multidim" }

func (s MultidimStudy) Configure(p *problem.Problem, cfg RunConfig, dk *deck.Deck) error {
	if len(s.Partitions) != len(p.Parameters) {
		return &problem.ConfigurationError{
			Field:  "partitions",
			Reason: fmt.Sprintf("#partitions (%d) != #parameters (%d)", len(s.Partitions), len(p.Parameters)),
		}
	}
	for i, part := range s.Partitions {
		if part < 1 {
			return &problem.ConfigurationError{
				Field:  "partitions",
				Reason: fmt.Sprintf("partition %d must be at least 1, got %d", i, part),
			}
		}
	}

	dk.Method = []string{
		"multidim_parameter_study",
		fmt.Sprintf("    output = %s", cfg.Output),
		fmt.Sprintf("    partitions = %s", deck.Ints(s.Partitions)),
	}

	if err := setVariables(p, dk, false, false); err != nil {
		return err
	}

	dk.Responses = []string{
		fmt.Sprintf("objective_functions = %d", len(p.Objectives)),
		"no_gradients",
		"no_hessians",
	}
	return nil
}

// VectorStudy evaluates the objective at evenly spaced steps along the
// line from the declared starting point to FinalPoint.
type VectorStudy struct {
	FinalPoint []float64
	NumSteps   int
}

func (s VectorStudy) Name() string { return "vector" }

func (s VectorStudy) Configure(p *problem.Problem, cfg RunConfig, dk *deck.Deck) error {
	if len(s.FinalPoint) != len(p.Parameters) {
		return &problem.ConfigurationError{
			Field:  "final_point",
			Reason: fmt.Sprintf("#final_point (%d) != #parameters (%d)", len(s.FinalPoint), len(p.Parameters)),
		}
	}
	if s.NumSteps < 1 {
		return &problem.ConfigurationError{
			Field:  "num_steps",
			Reason: fmt.Sprintf("must be at least 1, got %d", s.NumSteps),
		}
	}

	dk.Method = []string{
		"vector_parameter_study",
		fmt.Sprintf("    output = %s", cfg.Output),
		fmt.Sprintf("    final_point = %s", deck.Floats(s.FinalPoint)),
		fmt.Sprintf("    num_steps = %d", s.NumSteps),
	}

	// The vector walk starts at the declared starting point, so an
	// initial_point line is required here.
	if err := setVariables(p, dk, true, false); err != nil {
		return err
	}

	dk.Responses = []string{
		fmt.Sprintf("objective_functions = %d", len(p.Objectives)),
		"no_gradients",
		"no_hessians",
	}
	return nil
}

// SamplingStudy performs global sensitivity analysis by sampling the
// parameter space, treating the parameters as uniform uncertain
// variables.
type SamplingStudy struct {
	SampleType string // "lhs" or "random", default "lhs"
	Seed       int    // default 52983
	Samples    int    // default 100
}

func (s SamplingStudy) Name() string { return "sampling" }

func (s SamplingStudy) Configure(p *problem.Problem, cfg RunConfig, dk *deck.Deck) error {
	sampleType := s.SampleType
	if sampleType == "" {
		sampleType = "lhs"
	}
	if sampleType != "lhs" && sampleType != "random" {
		return &problem.ConfigurationError{
			Field:  "sample_type",
			Reason: fmt.Sprintf("must be lhs or random, got %q", sampleType),
		}
	}
	seed := s.Seed
	if seed == 0 {
		seed = 52983
	}
	samples := s.Samples
	if samples == 0 {
		samples = 100
	}
	if samples < 1 {
		return &problem.ConfigurationError{
			Field:  "samples",
			Reason: fmt.Sprintf("must be at least 1, got %d", samples),
		}
	}

	dk.Method = []string{
		"sampling",
		fmt.Sprintf("    output = %s", cfg.Output),
		fmt.Sprintf("    sample_type = %s", sampleType),
		fmt.Sprintf("    seed = %d", seed),
		fmt.Sprintf("    samples = %d", samples),
	}

	if err := setVariables(p, dk, false, true); err != nil {
		return err
	}

	dk.Responses = []string{
		fmt.Sprintf("num_response_functions = %d", len(p.Objectives)),
		fmt.Sprintf("response_descriptors = %s", strings.Join(deck.QuoteAll(p.ObjectiveNames()), " ")),
		"no_gradients",
		"no_hessians",
	}
	return nil
}

// FromSpec builds the study selected by a problem file's method block.
func FromSpec(spec problem.MethodSpec) (Study, error) {
	switch spec.Type {
	case "conmin":
		return CONMIN{
			MaxFunctionEvaluations: spec.MaxFunctionEvaluations,
			ConstraintTolerance:    spec.ConstraintTolerance,
		}, nil
	case "multidim":
		return MultidimStudy{Partitions: spec.Partitions}, nil
	case "vector":
		return VectorStudy{FinalPoint: spec.FinalPoint, NumSteps: spec.NumSteps}, nil
	case "sampling":
		return SamplingStudy{
			SampleType: spec.SampleType,
			Seed:       spec.Seed,
			Samples:    spec.Samples,
		}, nil
	default:
		return nil, &problem.ConfigurationError{
			Field:  "method.type",
			Reason: fmt.Sprintf("unknown study method %q", spec.Type),
		}
	}
}
