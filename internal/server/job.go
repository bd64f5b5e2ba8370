package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openmdao-go/dakota-driver/internal/problem"
	"github.com/openmdao-go/dakota-driver/internal/store"
)

// RunRequest is the payload that creates a run: the problem definition
// plus the executable to launch. Executable defaults to "dakota".
type RunRequest struct {
	Problem    problem.File `json:"problem"`
	Executable string       `json:"executable,omitempty"`
}

// Job is the in-memory view of an asynchronous run.
type Job struct {
	ID        string         `json:"id"`
	State     store.RunState `json:"state"`
	Request   RunRequest     `json:"request"`
	Rows      int            `json:"rows"`
	LastRow   []float64      `json:"lastRow,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   *time.Time     `json:"endTime,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// JobManager tracks job lifecycles. All access goes through the mutex;
// callers receive copies, never the tracked values.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates an empty job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a new pending job for the given request.
func (jm *JobManager) CreateJob(req RunRequest) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     store.StatePending,
		Request:   req,
		StartTime: time.Now(),
	}
	jm.jobs[job.ID] = job
	return *job
}

// GetJob retrieves a copy of a job by ID.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns copies of all jobs.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// UpdateJob atomically updates a job using the provided function.
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	updateFn(job)
	return nil
}

// RemoveJob drops a job from the manager. The run directory, if any, is
// the store's concern, not the manager's.
func (jm *JobManager) RemoveJob(id string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if _, exists := jm.jobs[id]; !exists {
		return false
	}
	delete(jm.jobs, id)
	return true
}
