package sim

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/openmdao-go/dakota-driver/internal/tabular"
)

// recorder counts evaluations and logs each one as a tabular row:
// eval id, variable values, objective, constraint values. The writer is
// nil when tabular output is disabled.
type recorder struct {
	writer *tabular.Writer
	fn     Function
	ncons  int
	evals  int
	bestX  []float64
	bestF  float64
}

func newRecorder(writer *tabular.Writer, fn Function, ncons int) *recorder {
	return &recorder{writer: writer, fn: fn, ncons: ncons}
}

// eval evaluates the objective at x, records the iterate and tracks the
// best point seen.
func (r *recorder) eval(x []float64) (float64, error) {
	f := r.fn.Objective(x)
	r.evals++

	if r.bestX == nil || f < r.bestF {
		r.bestX = append([]float64(nil), x...)
		r.bestF = f
	}

	if r.writer != nil {
		row := make(tabular.Row, 0, 1+len(x)+1+r.ncons)
		row = append(row, float64(r.evals))
		row = append(row, x...)
		row = append(row, f)
		for i := 0; i < r.ncons; i++ {
			row = append(row, r.fn.Constraints[i](x))
		}
		if err := r.writer.WriteRow(row); err != nil {
			return 0, err
		}
	}
	return f, nil
}

// runOptimizer handles the conmin_* methods with the mayfly algorithm.
// The external library takes scalar bounds, so the widest per-dimension
// box is passed and candidates are clamped back into the declared
// bounds before evaluation. Constraint violations are handled with a
// quadratic penalty.
func runOptimizer(in *Input, rec *recorder) error {
	dim := len(in.Variables.Descriptors)
	lower, upper := in.Variables.Lower, in.Variables.Upper

	scalarLower, scalarUpper := lower[0], upper[0]
	for i := 1; i < dim; i++ {
		if lower[i] < scalarLower {
			scalarLower = lower[i]
		}
		if upper[i] > scalarUpper {
			scalarUpper = upper[i]
		}
	}

	maxEvals := in.intSetting("max_function_evaluations", 1000)
	var evalErr error
	penalized := func(x []float64) float64 {
		clamped := make([]float64, dim)
		for i, v := range x {
			if v < lower[i] {
				v = lower[i]
			}
			if v > upper[i] {
				v = upper[i]
			}
			clamped[i] = v
		}

		var f float64
		if evalErr == nil && rec.evals < maxEvals {
			f, evalErr = rec.eval(clamped)
		} else {
			f = rec.fn.Objective(clamped)
		}

		penalty := 0.0
		for i := 0; i < in.NumConstraints; i++ {
			if g := rec.fn.Constraints[i](clamped); g > 0 {
				penalty += 1e6 * g * g
			}
		}
		return f + penalty
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = penalized
	config.ProblemSize = dim
	config.MaxIterations = in.intSetting("max_iterations", 100)
	config.LowerBound = scalarLower
	config.UpperBound = scalarUpper
	config.Rand = rand.New(rand.NewSource(int64(in.intSetting("seed", 42))))

	if _, err := mayfly.Optimize(config); err != nil {
		return fmt.Errorf("optimizer failed: %w", err)
	}
	if evalErr != nil {
		return evalErr
	}
	return nil
}

// runGrid handles multidim_parameter_study: a full-factorial sweep with
// partitions[i] intervals (partitions[i]+1 points) per dimension.
func runGrid(in *Input, rec *recorder) error {
	dim := len(in.Variables.Descriptors)
	partitions, ok := in.floatsSetting("partitions")
	if !ok || len(partitions) != dim {
		return fmt.Errorf("multidim study needs %d partitions", dim)
	}

	counts := make([]int, dim)
	for i, p := range partitions {
		if p < 1 {
			return fmt.Errorf("partition %d must be at least 1", i)
		}
		counts[i] = int(p) + 1
	}

	idx := make([]int, dim)
	x := make([]float64, dim)
	for {
		for i := 0; i < dim; i++ {
			span := in.Variables.Upper[i] - in.Variables.Lower[i]
			x[i] = in.Variables.Lower[i] + span*float64(idx[i])/float64(counts[i]-1)
		}
		if _, err := rec.eval(x); err != nil {
			return err
		}

		// Advance the last index fastest.
		carry := dim - 1
		for carry >= 0 {
			idx[carry]++
			if idx[carry] < counts[carry] {
				break
			}
			idx[carry] = 0
			carry--
		}
		if carry < 0 {
			return nil
		}
	}
}

// runVector handles vector_parameter_study: num_steps evenly spaced
// steps from the initial point to final_point, endpoints included.
func runVector(in *Input, rec *recorder) error {
	dim := len(in.Variables.Descriptors)
	final, ok := in.floatsSetting("final_point")
	if !ok || len(final) != dim {
		return fmt.Errorf("vector study needs a final_point of length %d", dim)
	}
	steps := in.intSetting("num_steps", 1)
	if steps < 1 {
		return fmt.Errorf("num_steps must be at least 1")
	}

	initial := in.Variables.Initial
	if initial == nil {
		// No initial point in the deck: start from the center of the box.
		initial = make([]float64, dim)
		for i := range initial {
			initial[i] = (in.Variables.Lower[i] + in.Variables.Upper[i]) / 2
		}
	}

	x := make([]float64, dim)
	for step := 0; step <= steps; step++ {
		t := float64(step) / float64(steps)
		for i := 0; i < dim; i++ {
			x[i] = initial[i] + t*(final[i]-initial[i])
		}
		if _, err := rec.eval(x); err != nil {
			return err
		}
	}
	return nil
}

// runSampling handles the sampling method with uniform draws inside the
// bounds. LHS is treated as seeded uniform sampling; the stand-in only
// needs plausible coverage, not variance reduction.
func runSampling(in *Input, rec *recorder) error {
	dim := len(in.Variables.Descriptors)
	samples := in.intSetting("samples", 100)
	if samples < 1 {
		return fmt.Errorf("samples must be at least 1")
	}
	rng := rand.New(rand.NewSource(int64(in.intSetting("seed", 52983))))

	x := make([]float64, dim)
	for s := 0; s < samples; s++ {
		for i := 0; i < dim; i++ {
			span := in.Variables.Upper[i] - in.Variables.Lower[i]
			x[i] = in.Variables.Lower[i] + span*rng.Float64()
		}
		if _, err := rec.eval(x); err != nil {
			return err
		}
	}
	return nil
}
