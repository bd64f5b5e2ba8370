package store

import (
	"fmt"
	"time"

	"github.com/openmdao-go/dakota-driver/internal/problem"
)

// RunState tracks a run through its lifecycle.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// RunFiles names the artifacts inside a run directory, relative to it.
type RunFiles struct {
	Input   string `json:"input"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Tabular string `json:"tabular,omitempty"`
}

// Manifest is the persistent record of one run. It is written before
// launch and updated when the run finishes; the tabular file next to it
// holds the iterate data and is never rewritten.
type Manifest struct {
	// RunID is the unique identifier of this run.
	RunID string `json:"runId"`

	// State is the last observed lifecycle state.
	State RunState `json:"state"`

	// Study names the method that produced this run (conmin, multidim,
	// vector, sampling).
	Study string `json:"study"`

	// Executable is the external binary that was (or will be) launched.
	Executable string `json:"executable"`

	// Problem is the declarative problem the run was configured with,
	// kept for inspection and re-runs.
	Problem problem.File `json:"problem"`

	// Files locates the run artifacts inside the run directory.
	Files RunFiles `json:"files"`

	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	// Rows is the number of iterates in the tabular file when the run
	// finished; zero for runs without tabular output.
	Rows int `json:"rows,omitempty"`

	// Error holds the failure message for failed runs.
	Error string `json:"error,omitempty"`
}

// Validate checks that the manifest has the fields every consumer
// relies on.
func (m *Manifest) Validate() error {
	if m.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if m.State == "" {
		return &ValidationError{Field: "State", Reason: "cannot be empty"}
	}
	if m.Study == "" {
		return &ValidationError{Field: "Study", Reason: "cannot be empty"}
	}
	if m.CreatedAt.IsZero() {
		return &ValidationError{Field: "CreatedAt", Reason: "cannot be zero"}
	}
	if m.Files.Input == "" {
		return &ValidationError{Field: "Files.Input", Reason: "cannot be empty"}
	}
	return nil
}

// Info is the listing view of a manifest, without the embedded problem.
type Info struct {
	RunID     string     `json:"runId"`
	State     RunState   `json:"state"`
	Study     string     `json:"study"`
	CreatedAt time.Time  `json:"createdAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Rows      int        `json:"rows,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ToInfo converts a manifest to its listing view.
func (m *Manifest) ToInfo() Info {
	return Info{
		RunID:     m.RunID,
		State:     m.State,
		Study:     m.Study,
		CreatedAt: m.CreatedAt,
		EndedAt:   m.EndedAt,
		Rows:      m.Rows,
		Error:     m.Error,
	}
}

// ValidationError reports an invalid manifest.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}
