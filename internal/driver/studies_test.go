package driver

import (
	"errors"
	"strings"
	"testing"

	"github.com/openmdao-go/dakota-driver/internal/deck"
	"github.com/openmdao-go/dakota-driver/internal/problem"
)

func floatPtr(v float64) *float64 {
	return &v
}

func twoParamProblem() *problem.Problem {
	return &problem.Problem{
		Parameters: []problem.Parameter{
			{Name: "x1", Lower: -10, Upper: 10, Start: floatPtr(-1.2)},
			{Name: "x2", Lower: -10, Upper: 10, Start: floatPtr(1)},
		},
		Objectives: []problem.Objective{{Name: "f"}},
	}
}

func constrainedProblem() *problem.Problem {
	p := twoParamProblem()
	p.Constraints = []problem.Constraint{
		{Name: "g1", Expression: "x1*x1 - x2/2 <= 0"},
		{Name: "g2", Expression: "x2*x2 - x1/2 <= 0"},
	}
	return p
}

func deckText(t *testing.T, study Study, p *problem.Problem) string {
	t.Helper()

	dk := deck.New()
	if err := study.Configure(p, RunConfig{}.withDefaults(), dk); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	var sb strings.Builder
	if err := dk.Write(&sb); err != nil {
		t.Fatalf("Deck write failed: %v", err)
	}
	return sb.String()
}

func TestCONMIN_Unconstrained(t *testing.T) {
	out := deckText(t, CONMIN{}, twoParamProblem())

	for _, want := range []string{
		"conmin_frcg",
		"max_function_evaluations = 1000",
		"convergence_tolerance = 1e-07",
		"continuous_design = 2",
		"initial_point -1.2 1",
		"lower_bounds  -10 -10",
		"upper_bounds  10 10",
		"descriptors   'x1' 'x2'",
		"objective_functions = 1",
		"numerical_gradients",
		"method_source dakota",
		"interval_type forward",
		"fd_gradient_step_size = 1e-05",
		"no_hessians",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Deck missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "conmin_mfd") {
		t.Error("Unconstrained problem should not use conmin_mfd")
	}
	if strings.Contains(out, "nonlinear_inequality_constraints") {
		t.Error("Unconstrained deck should not declare constraints")
	}
}

func TestCONMIN_Constrained(t *testing.T) {
	out := deckText(t, CONMIN{}, constrainedProblem())

	for _, want := range []string{
		"conmin_mfd",
		"constraint_tolerance = 1e-07",
		"nonlinear_inequality_constraints = 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Deck missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "conmin_frcg") {
		t.Error("Constrained problem should use conmin_mfd, not conmin_frcg")
	}
}

func TestCONMIN_CustomSettings(t *testing.T) {
	study := CONMIN{MaxFunctionEvaluations: 250, ConstraintTolerance: 1e-4}
	out := deckText(t, study, constrainedProblem())

	if !strings.Contains(out, "max_function_evaluations = 250") {
		t.Errorf("Custom evaluation limit not applied:\n%s", out)
	}
	if !strings.Contains(out, "constraint_tolerance = 0.0001") {
		t.Errorf("Custom constraint tolerance not applied:\n%s", out)
	}
}

func TestCONMIN_RejectsMultipleObjectives(t *testing.T) {
	p := twoParamProblem()
	p.Objectives = append(p.Objectives, problem.Objective{Name: "f2"})

	err := CONMIN{}.Configure(p, RunConfig{}.withDefaults(), deck.New())
	if err == nil {
		t.Fatal("Expected error for multiple objectives")
	}
	if !errors.Is(err, problem.ErrConfiguration) {
		t.Errorf("Expected ConfigurationError, got %T", err)
	}
}

func TestCONMIN_RequiresStartingValues(t *testing.T) {
	p := twoParamProblem()
	p.Parameters[1].Start = nil

	err := CONMIN{}.Configure(p, RunConfig{}.withDefaults(), deck.New())
	if err == nil {
		t.Fatal("Expected error for missing starting value")
	}
	if !strings.Contains(err.Error(), "x2") {
		t.Errorf("Error should name the parameter: %v", err)
	}
}

func TestMultidimStudy(t *testing.T) {
	out := deckText(t, MultidimStudy{Partitions: []int{4, 8}}, twoParamProblem())

	for _, want := range []string{
		"multidim_parameter_study",
		"partitions = 4 8",
		"continuous_design = 2",
		"no_gradients",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Deck missing %q:\n%s", want, out)
		}
	}
	// Grid walks ignore the starting point.
	if strings.Contains(out, "initial_point") {
		t.Error("Multidim deck should not declare an initial point")
	}
}

func TestMultidimStudy_PartitionMismatch(t *testing.T) {
	err := MultidimStudy{Partitions: []int{4}}.Configure(
		twoParamProblem(), RunConfig{}.withDefaults(), deck.New())
	if err == nil {
		t.Fatal("Expected error for partition count mismatch")
	}
}

func TestMultidimStudy_PartitionTooSmall(t *testing.T) {
	err := MultidimStudy{Partitions: []int{4, 0}}.Configure(
		twoParamProblem(), RunConfig{}.withDefaults(), deck.New())
	if err == nil {
		t.Fatal("Expected error for zero partitions")
	}
}

func TestVectorStudy(t *testing.T) {
	study := VectorStudy{FinalPoint: []float64{2, 2}, NumSteps: 10}
	out := deckText(t, study, twoParamProblem())

	for _, want := range []string{
		"vector_parameter_study",
		"final_point = 2 2",
		"num_steps = 10",
		"initial_point -1.2 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Deck missing %q:\n%s", want, out)
		}
	}
}

func TestVectorStudy_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		study VectorStudy
	}{
		{"final point length mismatch", VectorStudy{FinalPoint: []float64{2}, NumSteps: 10}},
		{"zero steps", VectorStudy{FinalPoint: []float64{2, 2}, NumSteps: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.study.Configure(twoParamProblem(), RunConfig{}.withDefaults(), deck.New())
			if err == nil {
				t.Fatal("Expected configuration error")
			}
		})
	}
}

func TestSamplingStudy_Defaults(t *testing.T) {
	out := deckText(t, SamplingStudy{}, twoParamProblem())

	for _, want := range []string{
		"sampling",
		"sample_type = lhs",
		"seed = 52983",
		"samples = 100",
		"uniform_uncertain = 2",
		"num_response_functions = 1",
		"response_descriptors = 'f'",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Deck missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "continuous_design") {
		t.Error("Sampling deck should use uniform uncertain variables")
	}
}

func TestSamplingStudy_InvalidSampleType(t *testing.T) {
	err := SamplingStudy{SampleType: "sobol"}.Configure(
		twoParamProblem(), RunConfig{}.withDefaults(), deck.New())
	if err == nil {
		t.Fatal("Expected error for unknown sample type")
	}
}

func TestFromSpec(t *testing.T) {
	tests := []struct {
		specType string
		name     string
	}{
		{"conmin", "conmin"},
		{"multidim", "multidim"},
		{"vector", "vector"},
		{"sampling", "sampling"},
	}
	for _, tt := range tests {
		t.Run(tt.specType, func(t *testing.T) {
			study, err := FromSpec(problem.MethodSpec{Type: tt.specType})
			if err != nil {
				t.Fatalf("FromSpec failed: %v", err)
			}
			if study.Name() != tt.name {
				t.Errorf("Expected study %q, got %q", tt.name, study.Name())
			}
		})
	}
}

func TestFromSpec_Unknown(t *testing.T) {
	_, err := FromSpec(problem.MethodSpec{Type: "genetic"})
	if err == nil {
		t.Fatal("Expected error for unknown method type")
	}
	if !errors.Is(err, problem.ErrConfiguration) {
		t.Errorf("Expected ConfigurationError, got %T", err)
	}
}

func TestFromSpec_CarriesSettings(t *testing.T) {
	study, err := FromSpec(problem.MethodSpec{
		Type:       "vector",
		FinalPoint: []float64{1, 2},
		NumSteps:   5,
	})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}
	vs, ok := study.(VectorStudy)
	if !ok {
		t.Fatalf("Expected VectorStudy, got %T", study)
	}
	if vs.NumSteps != 5 || len(vs.FinalPoint) != 2 {
		t.Errorf("Settings not carried: %+v", vs)
	}
}
