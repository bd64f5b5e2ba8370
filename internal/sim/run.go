package sim

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/openmdao-go/dakota-driver/internal/tabular"
)

// Options configure one simulator run.
type Options struct {
	// InputPath is the input deck to execute.
	InputPath string

	// Stdout receives the run summary, Stderr the failure notices.
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the deck at opts.InputPath: parse, select the built-in
// test function, dispatch the method and write the tabular file next to
// the deck. Returns an error for unparsable decks, unknown functions or
// method failures.
func Run(opts Options) error {
	in, err := ParseFile(opts.InputPath)
	if err != nil {
		return err
	}

	fn, err := lookupFunction(in.Variables.Descriptors, in.NumConstraints)
	if err != nil {
		return err
	}
	if in.NumObjectives != 1 {
		return fmt.Errorf("built-in test functions have a single objective, deck declares %d", in.NumObjectives)
	}

	var writer *tabular.Writer
	if in.Tabular {
		path := in.TabularFile
		if path == "" {
			path = "dakota_tabular.dat"
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(opts.InputPath), path)
		}
		writer, err = tabular.NewWriter(path, tabularColumns(in))
		if err != nil {
			return err
		}
		defer writer.Close()
	}

	rec := newRecorder(writer, fn, in.NumConstraints)

	switch in.Method {
	case "conmin_frcg", "conmin_mfd":
		err = runOptimizer(in, rec)
	case "multidim_parameter_study":
		err = runGrid(in, rec)
	case "vector_parameter_study":
		err = runVector(in, rec)
	case "sampling":
		err = runSampling(in, rec)
	default:
		err = fmt.Errorf("unsupported method %q", in.Method)
	}
	if err != nil {
		return err
	}

	if writer != nil {
		if err := writer.Flush(); err != nil {
			return err
		}
	}

	if opts.Stdout != nil {
		fmt.Fprintf(opts.Stdout, "method %s on %s: %d evaluations\n", in.Method, fn.Name, rec.evals)
		if rec.bestX != nil {
			fmt.Fprintf(opts.Stdout, "best point %v objective %g\n", rec.bestX, rec.bestF)
		}
	}
	return nil
}

// tabularColumns builds the header: eval id, variable descriptors, then
// response columns. Response names come from response_descriptors when
// the deck provides them; otherwise the external tool's obj_fn /
// nln_ineq_con_N convention is used.
func tabularColumns(in *Input) []string {
	cols := make([]string, 0, 1+len(in.Variables.Descriptors)+in.NumObjectives+in.NumConstraints)
	cols = append(cols, "eval_id")
	cols = append(cols, in.Variables.Descriptors...)

	if len(in.ResponseNames) == in.NumObjectives {
		cols = append(cols, in.ResponseNames...)
	} else if in.NumObjectives == 1 {
		cols = append(cols, "obj_fn")
	} else {
		for i := 1; i <= in.NumObjectives; i++ {
			cols = append(cols, fmt.Sprintf("obj_fn_%d", i))
		}
	}
	for i := 1; i <= in.NumConstraints; i++ {
		cols = append(cols, fmt.Sprintf("nln_ineq_con_%d", i))
	}
	return cols
}
