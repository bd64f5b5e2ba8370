package problem

import (
	"errors"
	"strings"
	"testing"
)

func floatPtr(v float64) *float64 {
	return &v
}

// validProblem returns a problem that passes validation, for tests to
// break in one specific way.
func validProblem() *Problem {
	return &Problem{
		Parameters: []Parameter{
			{Name: "x1", Lower: -10, Upper: 10, Start: floatPtr(1)},
			{Name: "x2", Lower: -10, Upper: 10, Start: floatPtr(1)},
		},
		Objectives: []Objective{{Name: "f"}},
		Constraints: []Constraint{
			{Name: "g1", Expression: "x1*x1 - x2/2 <= 0"},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validProblem().Validate(); err != nil {
		t.Fatalf("Validate failed on valid problem: %v", err)
	}
}

func TestValidate_NoParameters(t *testing.T) {
	p := validProblem()
	p.Parameters = nil

	err := p.Validate()
	if err == nil {
		t.Fatal("Expected error for problem without parameters")
	}
	if !strings.Contains(err.Error(), "no parameters, run aborted") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestValidate_NoObjectives(t *testing.T) {
	p := validProblem()
	p.Objectives = nil

	if err := p.Validate(); err == nil {
		t.Fatal("Expected error for problem without objectives")
	}
}

func TestValidate_BoundsInverted(t *testing.T) {
	p := validProblem()
	p.Parameters[0].Lower = 5
	p.Parameters[0].Upper = -5

	err := p.Validate()
	if err == nil {
		t.Fatal("Expected error for inverted bounds")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %T: %v", err, err)
	}
	if cfgErr.Field != "x1" {
		t.Errorf("Expected field x1, got %q", cfgErr.Field)
	}
}

func TestValidate_StartOutsideBounds(t *testing.T) {
	p := validProblem()
	p.Parameters[1].Start = floatPtr(100)

	if err := p.Validate(); err == nil {
		t.Fatal("Expected error for start outside bounds")
	}
}

func TestValidate_StartOnBoundary(t *testing.T) {
	p := validProblem()
	p.Parameters[0].Start = floatPtr(-10)
	p.Parameters[1].Start = floatPtr(10)

	if err := p.Validate(); err != nil {
		t.Fatalf("Start on boundary should be valid: %v", err)
	}
}

func TestValidate_NoStartIsValid(t *testing.T) {
	p := validProblem()
	p.Parameters[0].Start = nil

	if err := p.Validate(); err != nil {
		t.Fatalf("Problem without start values should validate: %v", err)
	}
}

func TestValidate_DuplicateNames(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Problem)
	}{
		{"duplicate parameter", func(p *Problem) {
			p.Parameters[1].Name = "x1"
		}},
		{"objective shadows parameter", func(p *Problem) {
			p.Objectives[0].Name = "x2"
		}},
		{"constraint shadows objective", func(p *Problem) {
			p.Constraints[0].Name = "f"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProblem()
			tt.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("Expected duplicate-name error")
			}
			if !strings.Contains(err.Error(), "duplicate name") {
				t.Errorf("Unexpected error message: %v", err)
			}
		})
	}
}

func TestValidate_EmptyNames(t *testing.T) {
	p := validProblem()
	p.Parameters[0].Name = ""

	if err := p.Validate(); err == nil {
		t.Fatal("Expected error for empty parameter name")
	}
}

func TestValidate_ConstraintReferencesUndeclared(t *testing.T) {
	p := validProblem()
	p.Constraints[0].Expression = "x1 + x3 <= 0"

	err := p.Validate()
	if err == nil {
		t.Fatal("Expected error for undeclared reference")
	}
	if !strings.Contains(err.Error(), "x3") {
		t.Errorf("Error should name the undeclared reference: %v", err)
	}
}

func TestValidate_ConstraintCannotReferenceConstraint(t *testing.T) {
	p := validProblem()
	p.Constraints = append(p.Constraints, Constraint{
		Name:       "g2",
		Expression: "g1 <= 1",
	})

	if err := p.Validate(); err == nil {
		t.Fatal("Constraint referencing another constraint should fail")
	}
}

func TestValidate_ConstraintMayReferenceObjective(t *testing.T) {
	p := validProblem()
	p.Constraints[0].Expression = "f <= 100"

	if err := p.Validate(); err != nil {
		t.Fatalf("Constraint on objective should validate: %v", err)
	}
}

func TestValidate_UnparsableConstraint(t *testing.T) {
	p := validProblem()
	p.Constraints[0].Expression = "x1 == 0"

	err := p.Validate()
	if err == nil {
		t.Fatal("Expected error for equality constraint")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected errors.Is(err, ErrConfiguration), got %T", err)
	}
}

func TestConfigurationError_Is(t *testing.T) {
	err := &ConfigurationError{Field: "x", Reason: "bad"}
	if !errors.Is(err, ErrConfiguration) {
		t.Error("ConfigurationError should match ErrConfiguration")
	}
	if errors.Is(errors.New("other"), ErrConfiguration) {
		t.Error("Unrelated error should not match ErrConfiguration")
	}
}
