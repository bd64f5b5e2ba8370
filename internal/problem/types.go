package problem

import "fmt"

// Parameter is a continuous design variable handed to the external
// optimizer. Name references a host-framework variable and is carried
// verbatim into the variable descriptors of the generated input deck.
type Parameter struct {
	Name  string   `yaml:"name" json:"name"`
	Lower float64  `yaml:"lower" json:"lower"`
	Upper float64  `yaml:"upper" json:"upper"`
	Start *float64 `yaml:"start,omitempty" json:"start,omitempty"`
}

// HasStart reports whether an explicit starting value was declared.
func (p Parameter) HasStart() bool {
	return p.Start != nil
}

// StartOr returns the declared starting value, or fallback if none was set.
func (p Parameter) StartOr(fallback float64) float64 {
	if p.Start != nil {
		return *p.Start
	}
	return fallback
}

// Objective references a host-framework output to be minimized.
type Objective struct {
	Name string `yaml:"name" json:"name"`
}

// Constraint is a nonlinear inequality constraint. Expression has the
// form "<arithmetic expression> <op> <bound>" where op is one of
// <=, >=, < or > and every identifier in the expression must reference
// a declared parameter or objective.
type Constraint struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
}

// Problem is the declarative optimization problem: what to vary, what to
// minimize, and what to keep feasible. It carries no method settings;
// those belong to the study and run configuration.
type Problem struct {
	Parameters  []Parameter  `yaml:"parameters" json:"parameters"`
	Objectives  []Objective  `yaml:"objectives" json:"objectives"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// ParameterNames returns the declared parameter names in order.
func (p *Problem) ParameterNames() []string {
	names := make([]string, len(p.Parameters))
	for i, param := range p.Parameters {
		names[i] = param.Name
	}
	return names
}

// ObjectiveNames returns the declared objective names in order.
func (p *Problem) ObjectiveNames() []string {
	names := make([]string, len(p.Objectives))
	for i, obj := range p.Objectives {
		names[i] = obj.Name
	}
	return names
}

// ConfigurationError reports an invalid problem declaration. All
// validation failures surface as this type so callers can distinguish
// configuration mistakes from execution or parse failures.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// ErrConfiguration can be used with errors.Is to detect configuration
// failures without inspecting the concrete value.
var ErrConfiguration = &ConfigurationError{}
