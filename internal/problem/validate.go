package problem

import "fmt"

// Validate checks the problem declaration before anything is written to
// disk or launched. Every failure is a *ConfigurationError; the external
// process is never started with an invalid declaration.
//
// Rules:
//   - at least one parameter and one objective
//   - for every parameter: lower <= upper, and lower <= start <= upper
//     when a starting value is declared
//   - names must be unique across parameters, objectives and constraints
//   - constraint expressions must parse and may only reference declared
//     parameters and objectives
func (p *Problem) Validate() error {
	if len(p.Parameters) == 0 {
		return &ConfigurationError{Field: "parameters", Reason: "no parameters, run aborted"}
	}
	if len(p.Objectives) == 0 {
		return &ConfigurationError{Field: "objectives", Reason: "no objectives, run aborted"}
	}

	declared := make(map[string]bool)
	for _, param := range p.Parameters {
		if param.Name == "" {
			return &ConfigurationError{Field: "parameters", Reason: "parameter name cannot be empty"}
		}
		if declared[param.Name] {
			return &ConfigurationError{Field: param.Name, Reason: "duplicate name"}
		}
		declared[param.Name] = true

		if param.Lower > param.Upper {
			return &ConfigurationError{
				Field:  param.Name,
				Reason: fmt.Sprintf("lower bound %g exceeds upper bound %g", param.Lower, param.Upper),
			}
		}
		if param.Start != nil {
			if *param.Start < param.Lower || *param.Start > param.Upper {
				return &ConfigurationError{
					Field:  param.Name,
					Reason: fmt.Sprintf("start %g outside bounds [%g, %g]", *param.Start, param.Lower, param.Upper),
				}
			}
		}
	}

	for _, obj := range p.Objectives {
		if obj.Name == "" {
			return &ConfigurationError{Field: "objectives", Reason: "objective name cannot be empty"}
		}
		if declared[obj.Name] {
			return &ConfigurationError{Field: obj.Name, Reason: "duplicate name"}
		}
		declared[obj.Name] = true
	}

	// Constraint expressions may only reference parameters and objectives,
	// never other constraints.
	referable := make(map[string]bool, len(declared))
	for name := range declared {
		referable[name] = true
	}

	for _, con := range p.Constraints {
		if con.Name == "" {
			return &ConfigurationError{Field: "constraints", Reason: "constraint name cannot be empty"}
		}
		if declared[con.Name] {
			return &ConfigurationError{Field: con.Name, Reason: "duplicate name"}
		}
		declared[con.Name] = true

		parsed, err := ParseConstraint(con.Expression)
		if err != nil {
			return &ConfigurationError{Field: con.Name, Reason: err.Error()}
		}
		for _, ref := range parsed.References {
			if !referable[ref] {
				return &ConfigurationError{
					Field:  con.Name,
					Reason: fmt.Sprintf("expression references undeclared name %q", ref),
				}
			}
		}
	}

	return nil
}
