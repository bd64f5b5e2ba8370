// Package store persists run workspaces. Each run owns one directory
// holding its manifest, the generated input deck, the stdout/stderr
// captures and the tabular iterate file, so concurrently executing
// drivers never share a file pair.
package store

// Store defines the interface for run persistence. Implementations must
// be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the run doesn't exist (Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// CreateRun allocates a directory for a new run and persists its
	// initial manifest. The manifest's RunID must be set.
	CreateRun(manifest *Manifest) error

	// SaveManifest atomically overwrites the manifest of an existing
	// run using the temp-file-plus-rename pattern.
	SaveManifest(runID string, manifest *Manifest) error

	// LoadManifest retrieves the manifest for the given run.
	// Returns ErrNotFound if no such run exists.
	LoadManifest(runID string) (*Manifest, error)

	// List returns metadata for all stored runs, newest first.
	List() ([]Info, error)

	// Delete removes the run directory and everything in it.
	// Returns ErrNotFound if no such run exists.
	Delete(runID string) error

	// RunDir returns the directory of a run, where the driver's
	// RunConfig should point its WorkDir.
	RunDir(runID string) string
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
