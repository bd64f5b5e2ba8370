package sim

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Function is a built-in test problem. Constraints follow the g(x) <= 0
// feasibility convention.
type Function struct {
	Name        string
	Dim         int // 0 means any dimension
	Objective   func(x []float64) float64
	Constraints []func(x []float64) float64
}

// builtins are keyed by the descriptor prefix before the first dot, so
// a deck with descriptors 'rosenbrock.x1' 'rosenbrock.x2' selects the
// Rosenbrock function.
var builtins = map[string]Function{
	"rosenbrock": {
		Name: "rosenbrock",
		Dim:  2,
		Objective: func(x []float64) float64 {
			return 100*math.Pow(x[1]-x[0]*x[0], 2) + math.Pow(1-x[0], 2)
		},
	},
	"textbook": {
		Name: "textbook",
		Dim:  2,
		Objective: func(x []float64) float64 {
			return math.Pow(x[0]-1, 4) + math.Pow(x[1]-1, 4)
		},
		Constraints: []func(x []float64) float64{
			func(x []float64) float64 { return x[0]*x[0] - x[1]/2 },
			func(x []float64) float64 { return x[1]*x[1] - x[0]/2 },
		},
	},
	"sphere": {
		Name: "sphere",
		Objective: func(x []float64) float64 {
			sum := 0.0
			for _, v := range x {
				sum += v * v
			}
			return sum
		},
	},
}

// lookupFunction selects the built-in test problem referenced by the
// variable descriptors.
func lookupFunction(descriptors []string, numConstraints int) (Function, error) {
	if len(descriptors) == 0 {
		return Function{}, fmt.Errorf("no variable descriptors")
	}
	prefix := descriptors[0]
	if i := strings.Index(prefix, "."); i >= 0 {
		prefix = prefix[:i]
	}

	fn, ok := builtins[prefix]
	if !ok {
		known := make([]string, 0, len(builtins))
		for name := range builtins {
			known = append(known, name)
		}
		sort.Strings(known)
		return Function{}, fmt.Errorf("unknown test function %q (known: %s)",
			prefix, strings.Join(known, ", "))
	}
	if fn.Dim != 0 && fn.Dim != len(descriptors) {
		return Function{}, fmt.Errorf("function %s expects %d variables, deck declares %d",
			fn.Name, fn.Dim, len(descriptors))
	}
	if numConstraints > len(fn.Constraints) {
		return Function{}, fmt.Errorf("function %s provides %d constraints, deck declares %d",
			fn.Name, len(fn.Constraints), numConstraints)
	}
	return fn, nil
}
