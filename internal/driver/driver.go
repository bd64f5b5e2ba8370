// Package driver translates a declarative optimization problem into the
// external toolkit's input format, launches the executable and parses
// its tabular output. No optimization algorithm lives here; this is a
// format-translation and process-invocation boundary only.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmdao-go/dakota-driver/internal/deck"
	"github.com/openmdao-go/dakota-driver/internal/problem"
	"github.com/openmdao-go/dakota-driver/internal/tabular"
)

// IntervalType selects the finite-difference scheme for numerical
// gradients.
type IntervalType string

const (
	IntervalForward IntervalType = "forward"
	IntervalCentral IntervalType = "central"
)

// Verbosity controls the external tool's output level.
type Verbosity string

const (
	OutputSilent  Verbosity = "silent"
	OutputQuiet   Verbosity = "quiet"
	OutputNormal  Verbosity = "normal"
	OutputVerbose Verbosity = "verbose"
	OutputDebug   Verbosity = "debug"
)

// RunConfig fixes the per-run settings: which executable to launch,
// where its files live, and the shared numerical knobs that studies
// read when they assemble their method section. A RunConfig is immutable
// for the duration of a run; concurrent runs must use distinct WorkDirs
// so their file pairs never collide.
type RunConfig struct {
	// Executable is the external optimizer binary. Args are appended
	// after the generated "-input <deck>" pair.
	Executable string
	Args       []string

	// WorkDir holds the generated deck and all output files. Relative
	// file names below resolve against it. Created if missing.
	WorkDir string

	// File names inside WorkDir. Empty fields get defaults.
	InputFile   string // default "dakota.in"
	StdoutFile  string // default "dakota.out"
	StderrFile  string // default "dakota.err"
	TabularFile string // default "dakota_tabular.dat"

	// Tabular enables per-evaluation logging to TabularFile.
	Tabular bool

	// AnalysisDriver, when set, adds a fork interface section invoking
	// the given program for each evaluation.
	AnalysisDriver string

	// Numerical settings shared by gradient-based studies.
	MaxIterations        int
	ConvergenceTolerance float64
	FDStepSize           float64
	Interval             IntervalType

	Output Verbosity
}

// withDefaults fills unset fields.
func (c RunConfig) withDefaults() RunConfig {
	if c.Executable == "" {
		c.Executable = "dakota"
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.InputFile == "" {
		c.InputFile = "dakota.in"
	}
	if c.StdoutFile == "" {
		c.StdoutFile = "dakota.out"
	}
	if c.StderrFile == "" {
		c.StderrFile = "dakota.err"
	}
	if c.TabularFile == "" {
		c.TabularFile = "dakota_tabular.dat"
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 100
	}
	if c.ConvergenceTolerance == 0 {
		c.ConvergenceTolerance = 1e-7
	}
	if c.FDStepSize == 0 {
		c.FDStepSize = 1e-5
	}
	if c.Interval == "" {
		c.Interval = IntervalForward
	}
	if c.Output == "" {
		c.Output = OutputNormal
	}
	return c
}

// InputPath returns the absolute-ish path of the generated deck.
func (c RunConfig) InputPath() string {
	return filepath.Join(c.WorkDir, c.InputFile)
}

// StdoutPath returns the path of the captured stdout.
func (c RunConfig) StdoutPath() string {
	return filepath.Join(c.WorkDir, c.StdoutFile)
}

// StderrPath returns the path of the captured stderr.
func (c RunConfig) StderrPath() string {
	return filepath.Join(c.WorkDir, c.StderrFile)
}

// TabularPath returns the path of the tabular iterate log.
func (c RunConfig) TabularPath() string {
	return filepath.Join(c.WorkDir, c.TabularFile)
}

// ExecutionError reports a failed launch or a nonzero exit of the
// external process.
type ExecutionError struct {
	Command  string
	ExitCode int // -1 when the process could not be launched
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("execution error: %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("execution error: %s exited with status %d", e.Command, e.ExitCode)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	_, ok := target.(*ExecutionError)
	return ok
}

// ErrExecution can be used with errors.Is to detect execution failures.
var ErrExecution = &ExecutionError{}

// Driver is the optimization driver adapter. A Driver is configured
// once, run once, then read; it holds no shared mutable state, so the
// host may create any number of drivers and run them concurrently as
// long as their RunConfigs use distinct working directories.
type Driver struct {
	study      Study
	prob       *problem.Problem
	cfg        RunConfig
	configured bool
	ran        bool
	runErr     error
}

// New creates a driver for the given study method.
func New(study Study) *Driver {
	return &Driver{study: study}
}

// Configure validates the problem declaration and study settings and
// fixes the run configuration. It must succeed before Run; all failures
// are *problem.ConfigurationError and nothing is written to disk.
func (d *Driver) Configure(p *problem.Problem, cfg RunConfig) error {
	if d.study == nil {
		return &problem.ConfigurationError{Field: "study", Reason: "no study method set"}
	}
	if p == nil {
		return &problem.ConfigurationError{Field: "problem", Reason: "problem cannot be nil"}
	}
	if err := p.Validate(); err != nil {
		return err
	}

	cfg = cfg.withDefaults()

	// Building the deck exercises every study-specific check (partition
	// counts, objective limits, ...) before anything touches disk.
	if _, err := buildDeck(d.study, p, cfg); err != nil {
		return err
	}

	d.prob = p
	d.cfg = cfg
	d.configured = true
	d.ran = false
	d.runErr = nil
	return nil
}

// Config returns the effective run configuration after defaulting.
// Valid only after Configure.
func (d *Driver) Config() RunConfig {
	return d.cfg
}

// BuildDeck assembles the input deck for the configured problem without
// running anything. Useful for inspection and tests.
func (d *Driver) BuildDeck() (*deck.Deck, error) {
	if !d.configured {
		return nil, &problem.ConfigurationError{Reason: "driver not configured"}
	}
	return buildDeck(d.study, d.prob, d.cfg)
}

// Run writes the input deck, launches the external process with stdout
// and stderr redirected to the configured files, and blocks until it
// exits. The context cancels the run by killing the child process. A
// launch failure or nonzero exit yields *ExecutionError. The outcome is
// recorded on the driver: after a failed run ReadResults refuses to
// return rows, even when the process left a parsable tabular file
// behind.
func (d *Driver) Run(ctx context.Context) error {
	if !d.configured {
		return &problem.ConfigurationError{Reason: "driver not configured"}
	}
	d.ran = true
	d.runErr = d.launch(ctx)
	return d.runErr
}

func (d *Driver) launch(ctx context.Context) error {
	if err := os.MkdirAll(d.cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	dk, err := d.BuildDeck()
	if err != nil {
		return err
	}
	if err := dk.WriteFile(d.cfg.InputPath()); err != nil {
		return fmt.Errorf("failed to write input deck: %w", err)
	}

	stdout, err := os.Create(d.cfg.StdoutPath())
	if err != nil {
		return fmt.Errorf("failed to create stdout file: %w", err)
	}
	defer stdout.Close()

	stderr, err := os.Create(d.cfg.StderrPath())
	if err != nil {
		return fmt.Errorf("failed to create stderr file: %w", err)
	}
	defer stderr.Close()

	args := append([]string{"-input", d.cfg.InputFile}, d.cfg.Args...)
	cmd := exec.CommandContext(ctx, d.cfg.Executable, args...)
	cmd.Dir = d.cfg.WorkDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.Info("Launching external optimizer",
		"executable", d.cfg.Executable,
		"input", d.cfg.InputPath(),
		"study", d.study.Name(),
	)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return &ExecutionError{Command: d.cfg.Executable, ExitCode: -1, Err: err}
	}
	err = cmd.Wait()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return &ExecutionError{Command: d.cfg.Executable, ExitCode: -1, Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Error("External optimizer failed",
				"executable", d.cfg.Executable,
				"exit_code", exitErr.ExitCode(),
				"stderr", d.cfg.StderrPath(),
			)
			return &ExecutionError{Command: d.cfg.Executable, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &ExecutionError{Command: d.cfg.Executable, ExitCode: -1, Err: err}
	}

	slog.Info("External optimizer finished",
		"executable", d.cfg.Executable,
		"elapsed", elapsed,
	)
	return nil
}

// ReadResults parses the tabular iterate log of the completed run into
// an ordered sequence of rows. Results exist only for a run that
// succeeded: before any run, or after a failed one, no rows are
// returned even if the process left a parsable tabular file behind. A
// malformed row aborts the parse with *tabular.ParseError and discards
// everything read so far: a truncated iterate table would otherwise
// present an interior row as the final iterate.
func (d *Driver) ReadResults() (*tabular.Table, error) {
	if !d.configured {
		return nil, &problem.ConfigurationError{Reason: "driver not configured"}
	}
	if !d.ran {
		return nil, &problem.ConfigurationError{Field: "run", Reason: "no run has been executed"}
	}
	if d.runErr != nil {
		return nil, fmt.Errorf("run failed, results discarded: %w", d.runErr)
	}
	if !d.cfg.Tabular {
		return nil, &problem.ConfigurationError{Field: "tabular", Reason: "tabular output not enabled for this run"}
	}
	return tabular.ReadFile(d.cfg.TabularPath())
}

// buildDeck assembles the complete input deck: tabular toggle in the
// environment section, method and responses from the study, variables
// from the problem, optional fork interface from the run configuration.
func buildDeck(study Study, p *problem.Problem, cfg RunConfig) (*deck.Deck, error) {
	dk := deck.New()
	if cfg.Tabular {
		dk.EnableTabular(cfg.TabularFile)
	}
	if cfg.AnalysisDriver != "" {
		dk.SetFork(cfg.AnalysisDriver)
	}
	if err := study.Configure(p, cfg, dk); err != nil {
		return nil, err
	}
	return dk, nil
}

// setVariables fills the variables section from the declared parameters.
// When needStart is true an initial_point line is included; uniform
// switches from design variables to uniform uncertain variables for
// sampling studies.
func setVariables(p *problem.Problem, dk *deck.Deck, needStart, uniform bool) error {
	n := len(p.Parameters)
	lower := make([]float64, n)
	upper := make([]float64, n)
	start := make([]float64, n)
	for i, param := range p.Parameters {
		lower[i] = param.Lower
		upper[i] = param.Upper
		if needStart {
			if !param.HasStart() {
				return &problem.ConfigurationError{
					Field:  param.Name,
					Reason: "starting value required for this study",
				}
			}
			start[i] = *param.Start
		}
	}

	if uniform {
		dk.Variables = []string{fmt.Sprintf("uniform_uncertain = %d", n)}
	} else {
		dk.Variables = []string{fmt.Sprintf("continuous_design = %d", n)}
	}
	if needStart {
		dk.Variables = append(dk.Variables,
			fmt.Sprintf("    initial_point %s", deck.Floats(start)))
	}
	dk.Variables = append(dk.Variables,
		fmt.Sprintf("    lower_bounds  %s", deck.Floats(lower)),
		fmt.Sprintf("    upper_bounds  %s", deck.Floats(upper)),
		fmt.Sprintf("    descriptors   %s", strings.Join(deck.QuoteAll(p.ParameterNames()), " ")),
	)
	return nil
}
