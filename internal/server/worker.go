package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/openmdao-go/dakota-driver/internal/driver"
	"github.com/openmdao-go/dakota-driver/internal/store"
)

// runJob executes a job in the background: configure a driver for the
// request, persist the run workspace, launch the external process and
// fold the tabular results back into the job and manifest.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return errors.New("job not found: " + jobID)
	}

	study, err := driver.FromSpec(job.Request.Problem.Method)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	drv := driver.New(study)
	cfg := driver.RunConfig{
		Executable: job.Request.Executable,
		WorkDir:    runStore.RunDir(jobID),
		Tabular:    true,
	}
	if err := drv.Configure(job.Request.Problem.Problem(), cfg); err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	cfg = drv.Config()

	now := time.Now()
	manifest := &store.Manifest{
		RunID:      jobID,
		State:      store.StateRunning,
		Study:      study.Name(),
		Executable: cfg.Executable,
		Problem:    job.Request.Problem,
		Files: store.RunFiles{
			Input:   cfg.InputFile,
			Stdout:  cfg.StdoutFile,
			Stderr:  cfg.StderrFile,
			Tabular: cfg.TabularFile,
		},
		CreatedAt: job.StartTime,
		StartedAt: &now,
	}
	if err := runStore.CreateRun(manifest); err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.State = store.StateRunning
	})
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     store.StateRunning,
		Timestamp: time.Now(),
	})

	slog.Info("Starting run", "job_id", jobID, "study", study.Name(), "executable", cfg.Executable)

	// Tail the tabular file for progress while the process runs.
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, cfg.TabularPath(), jobID, progressDone)

	runErr := drv.Run(ctx)
	close(progressDone)

	endTime := time.Now()
	manifest.EndedAt = &endTime

	// The manifest is persisted before the in-memory job flips to a
	// terminal state, so a client that observes the transition always
	// finds the manifest up to date.
	if runErr != nil {
		if ctx.Err() != nil {
			manifest.State = store.StateCancelled
			saveManifest(runStore, jobID, manifest)
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		manifest.State = store.StateFailed
		manifest.Error = runErr.Error()
		saveManifest(runStore, jobID, manifest)
		markJobFailed(jm, jobID, runErr)
		return runErr
	}

	results, err := drv.ReadResults()
	if err != nil {
		manifest.State = store.StateFailed
		manifest.Error = err.Error()
		saveManifest(runStore, jobID, manifest)
		markJobFailed(jm, jobID, err)
		return err
	}

	manifest.State = store.StateCompleted
	manifest.Rows = results.NumRows()
	saveManifest(runStore, jobID, manifest)

	jm.UpdateJob(jobID, func(j *Job) {
		j.State = store.StateCompleted
		j.Rows = results.NumRows()
		j.LastRow = results.Last()
		j.EndTime = &endTime
	})

	slog.Info("Run completed",
		"job_id", jobID,
		"rows", results.NumRows(),
		"elapsed", endTime.Sub(job.StartTime),
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     store.StateCompleted,
		Rows:      results.NumRows(),
		LastRow:   results.Last(),
		Timestamp: time.Now(),
	})
	return nil
}

// monitorProgress periodically counts complete rows in the growing
// tabular file and broadcasts them. Counting newlines keeps the monitor
// indifferent to partially written rows; strict parsing happens once,
// after the process exits.
func monitorProgress(ctx context.Context, jm *JobManager, tabularPath, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			rows := countRows(tabularPath)
			if rows < 0 {
				continue
			}
			jm.UpdateJob(jobID, func(j *Job) {
				j.Rows = rows
			})
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:     jobID,
				State:     job.State,
				Rows:      rows,
				Timestamp: time.Now(),
			})
		}
	}
}

// countRows returns the number of complete data rows in the tabular
// file (newline count minus the header), or -1 if it cannot be read.
func countRows(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	lines := bytes.Count(data, []byte{'\n'})
	if lines < 1 {
		return 0
	}
	return lines - 1
}

// markJobFailed marks a job as failed with an error message.
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = store.StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     store.StateFailed,
		Timestamp: endTime,
	})
	slog.Error("Run failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled.
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = store.StateCancelled
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     store.StateCancelled,
		Timestamp: endTime,
	})
	slog.Info("Run cancelled", "job_id", jobID)
}

// saveManifest persists the manifest, logging rather than failing the
// job when the write itself goes wrong.
func saveManifest(runStore store.Store, jobID string, manifest *store.Manifest) {
	if err := runStore.SaveManifest(jobID, manifest); err != nil {
		slog.Error("Failed to save manifest", "job_id", jobID, "error", err)
	}
}
