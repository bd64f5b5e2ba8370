package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// FSStore implements Store on the filesystem. Runs live under
// <baseDir>/runs/<runID>/ with a manifest.json next to the run's
// artifacts.
//
// Thread-safety: manifest writes use atomic rename, so no locks are
// needed; concurrent goroutines may operate on different runs freely.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem store rooted at baseDir, creating the
// directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// NewRunID returns a fresh unique run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// RunDir returns the directory path for a given run ID.
func (fs *FSStore) RunDir(runID string) string {
	return filepath.Join(fs.baseDir, "runs", runID)
}

func (fs *FSStore) manifestPath(runID string) string {
	return filepath.Join(fs.RunDir(runID), "manifest.json")
}

// CreateRun allocates the run directory and writes the initial manifest.
func (fs *FSStore) CreateRun(manifest *Manifest) error {
	if manifest == nil {
		return fmt.Errorf("manifest cannot be nil")
	}
	if err := manifest.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(fs.RunDir(manifest.RunID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	return fs.SaveManifest(manifest.RunID, manifest)
}

// SaveManifest atomically saves the manifest for the given run.
func (fs *FSStore) SaveManifest(runID string, manifest *Manifest) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if manifest == nil {
		return fmt.Errorf("manifest cannot be nil")
	}

	if err := os.MkdirAll(fs.RunDir(runID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	tempPath := fs.manifestPath(runID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp manifest file: %w", err)
	}

	finalPath := fs.manifestPath(runID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	slog.Debug("Manifest saved", "run_id", runID, "path", finalPath)
	return nil
}

// LoadManifest retrieves the manifest for the given run.
func (fs *FSStore) LoadManifest(runID string) (*Manifest, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.manifestPath(runID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat manifest file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	return &manifest, nil
}

// List returns metadata for all stored runs, newest first.
func (fs *FSStore) List() ([]Info, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		return []Info{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat runs directory: %w", err)
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifest, err := fs.LoadManifest(entry.Name())
		if err != nil {
			// Directories without a readable manifest are skipped, not
			// fatal: a crashed run may have left an empty directory.
			slog.Warn("Skipping run with unreadable manifest", "run_id", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, manifest.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	if infos == nil {
		infos = []Info{}
	}
	return infos, nil
}

// Delete removes the run directory and all artifacts in it.
func (fs *FSStore) Delete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := fs.RunDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete run directory: %w", err)
	}

	slog.Debug("Run deleted", "run_id", runID)
	return nil
}
