package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmdao-go/dakota-driver/internal/problem"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

// testManifest creates a manifest with plausible run data.
func testManifest(runID string) *Manifest {
	return &Manifest{
		RunID:      runID,
		State:      StatePending,
		Study:      "conmin",
		Executable: "dakota",
		Problem: problem.File{
			Parameters: []problem.Parameter{{Name: "x", Lower: -1, Upper: 1}},
			Objectives: []problem.Objective{{Name: "f"}},
			Method:     problem.MethodSpec{Type: "conmin"},
		},
		Files: RunFiles{
			Input:   "dakota.in",
			Stdout:  "dakota.out",
			Stderr:  "dakota.err",
			Tabular: "dakota_tabular.dat",
		},
		CreatedAt: time.Now(),
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestNewRunID_Unique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Errorf("Expected distinct non-empty IDs, got %q and %q", a, b)
	}
}

func TestCreateRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := NewRunID()
	if err := store.CreateRun(testManifest(runID)); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", runID, "manifest.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Manifest was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not exist after save")
	}
}

func TestCreateRun_NilManifest(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.CreateRun(nil); err == nil {
		t.Fatal("Expected error for nil manifest")
	}
}

func TestCreateRun_InvalidManifest(t *testing.T) {
	store, _ := setupTestStore(t)

	manifest := testManifest("run-x")
	manifest.Study = ""
	if err := store.CreateRun(manifest); err == nil {
		t.Fatal("Expected validation error for manifest without study")
	}
}

func TestSaveLoadManifest(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "test-run-roundtrip"
	original := testManifest(runID)
	if err := store.CreateRun(original); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	// Update after the run finishes.
	now := time.Now()
	original.State = StateCompleted
	original.EndedAt = &now
	original.Rows = 42
	if err := store.SaveManifest(runID, original); err != nil {
		t.Fatalf("SaveManifest failed: %v", err)
	}

	loaded, err := store.LoadManifest(runID)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if loaded.RunID != runID {
		t.Errorf("RunID mismatch: expected %s, got %s", runID, loaded.RunID)
	}
	if loaded.State != StateCompleted {
		t.Errorf("State mismatch: expected %s, got %s", StateCompleted, loaded.State)
	}
	if loaded.Rows != 42 {
		t.Errorf("Rows mismatch: expected 42, got %d", loaded.Rows)
	}
	if loaded.Files.Tabular != "dakota_tabular.dat" {
		t.Errorf("Files mismatch: %+v", loaded.Files)
	}
	if len(loaded.Problem.Parameters) != 1 || loaded.Problem.Parameters[0].Name != "x" {
		t.Errorf("Embedded problem not preserved: %+v", loaded.Problem)
	}
}

func TestSaveManifest_EmptyRunID(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveManifest("", testManifest("x")); err == nil {
		t.Fatal("Expected error for empty runID")
	}
}

func TestLoadManifest_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadManifest("nonexistent-run")
	if err == nil {
		t.Fatal("Expected error for nonexistent run")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %T: %v", err, err)
	}

	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.RunID != "nonexistent-run" {
		t.Errorf("Error should carry the run ID: %v", err)
	}
}

func TestList_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if infos == nil || len(infos) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", infos)
	}
}

func TestList_NewestFirst(t *testing.T) {
	store, _ := setupTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		manifest := testManifest(fmt.Sprintf("run-%d", i))
		manifest.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateRun(manifest); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(infos))
	}
	if infos[0].RunID != "run-2" || infos[2].RunID != "run-0" {
		t.Errorf("Runs not sorted newest first: %v", infos)
	}
}

func TestList_SkipsUnreadableManifests(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.CreateRun(testManifest("valid-run")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	// A crashed run may leave a directory without a manifest.
	emptyDir := filepath.Join(tempDir, "runs", "crashed-run")
	if err := os.MkdirAll(emptyDir, 0755); err != nil {
		t.Fatalf("Failed to create empty run directory: %v", err)
	}

	// Corrupt manifest.
	corruptDir := filepath.Join(tempDir, "runs", "corrupt-run")
	if err := os.MkdirAll(corruptDir, 0755); err != nil {
		t.Fatalf("Failed to create corrupt run directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corruptDir, "manifest.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt manifest: %v", err)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(infos))
	}
	if infos[0].RunID != "valid-run" {
		t.Errorf("Expected valid-run, got %s", infos[0].RunID)
	}
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "run-to-delete"
	if err := store.CreateRun(testManifest(runID)); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	// Artifacts in the run directory go with it.
	artifact := filepath.Join(store.RunDir(runID), "dakota_tabular.dat")
	if err := os.WriteFile(artifact, []byte("%eval_id x\n1 0\n"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}

	if err := store.Delete(runID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(store.RunDir(runID)); !os.IsNotExist(err) {
		t.Error("Run directory should be gone after delete")
	}

	_, err := store.LoadManifest(runID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError after delete, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.Delete("nonexistent-run")
	if err == nil {
		t.Fatal("Expected error for nonexistent run")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %T: %v", err, err)
	}
}

func TestManifestToInfo(t *testing.T) {
	manifest := testManifest("run-info")
	manifest.State = StateFailed
	manifest.Error = "exit status 1"
	manifest.Rows = 7

	info := manifest.ToInfo()
	if info.RunID != manifest.RunID || info.State != StateFailed {
		t.Errorf("Identity fields not carried: %+v", info)
	}
	if info.Rows != 7 || info.Error != "exit status 1" {
		t.Errorf("Result fields not carried: %+v", info)
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	const numRuns = 10
	done := make(chan error, numRuns)
	for i := 0; i < numRuns; i++ {
		go func(idx int) {
			done <- store.CreateRun(testManifest(fmt.Sprintf("concurrent-run-%d", idx)))
		}(i)
	}
	for i := 0; i < numRuns; i++ {
		if err := <-done; err != nil {
			t.Errorf("Concurrent create failed: %v", err)
		}
	}

	infos, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != numRuns {
		t.Errorf("Expected %d runs, got %d", numRuns, len(infos))
	}
}
