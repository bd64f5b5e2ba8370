package server

import (
	"testing"
	"time"

	"github.com/openmdao-go/dakota-driver/internal/store"
)

func TestJobManager_CreateAndGet(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testRequest("dakota"))
	if job.ID == "" {
		t.Fatal("Expected non-empty job ID")
	}
	if job.State != store.StatePending {
		t.Errorf("Expected pending state, got %s", job.State)
	}

	got, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if got.ID != job.ID {
		t.Errorf("ID mismatch: %s vs %s", got.ID, job.ID)
	}
	if got.Request.Executable != "dakota" {
		t.Errorf("Request not stored: %+v", got.Request)
	}
}

func TestJobManager_GetMissing(t *testing.T) {
	jm := NewJobManager()

	if _, exists := jm.GetJob("missing"); exists {
		t.Error("Missing job should not exist")
	}
}

func TestJobManager_UniqueIDs(t *testing.T) {
	jm := NewJobManager()

	a := jm.CreateJob(testRequest("dakota"))
	b := jm.CreateJob(testRequest("dakota"))
	if a.ID == b.ID {
		t.Errorf("Job IDs should be unique, both %s", a.ID)
	}
}

func TestJobManager_Update(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest("dakota"))

	end := time.Now()
	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = store.StateCompleted
		j.Rows = 5
		j.EndTime = &end
	})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != store.StateCompleted || got.Rows != 5 || got.EndTime == nil {
		t.Errorf("Update not applied: %+v", got)
	}
}

func TestJobManager_UpdateMissing(t *testing.T) {
	jm := NewJobManager()

	if err := jm.UpdateJob("missing", func(j *Job) {}); err == nil {
		t.Error("Expected error for missing job")
	}
}

func TestJobManager_ReturnsCopies(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest("dakota"))

	got, _ := jm.GetJob(job.ID)
	got.State = store.StateFailed

	again, _ := jm.GetJob(job.ID)
	if again.State != store.StatePending {
		t.Error("Mutating a returned job must not affect the tracked one")
	}
}

func TestJobManager_List(t *testing.T) {
	jm := NewJobManager()

	if jobs := jm.ListJobs(); len(jobs) != 0 {
		t.Errorf("Expected empty list, got %d", len(jobs))
	}

	jm.CreateJob(testRequest("dakota"))
	jm.CreateJob(testRequest("dakota"))
	if jobs := jm.ListJobs(); len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestJobManager_Remove(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest("dakota"))

	if !jm.RemoveJob(job.ID) {
		t.Fatal("RemoveJob should report true for existing job")
	}
	if _, exists := jm.GetJob(job.ID); exists {
		t.Error("Removed job should not exist")
	}
	if jm.RemoveJob(job.ID) {
		t.Error("Removing twice should report false")
	}
}
