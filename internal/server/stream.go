package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/openmdao-go/dakota-driver/internal/store"
)

// ProgressEvent is one progress update for a running job: current
// lifecycle state, how many iterates the tabular file holds and the
// most recent iterate.
type ProgressEvent struct {
	JobID     string         `json:"jobId"`
	State     store.RunState `json:"state"`
	Rows      int            `json:"rows"`
	LastRow   []float64      `json:"lastRow,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventBroadcaster fans progress events out to SSE clients per job.
type EventBroadcaster struct {
	mu        sync.RWMutex
	clients   map[string]map[chan ProgressEvent]bool
	lastEvent map[string]ProgressEvent
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan ProgressEvent]bool),
		lastEvent: make(map[string]ProgressEvent),
	}
}

// Subscribe adds a client channel for a job. Reconnecting clients
// immediately receive the last event, if any.
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 10)
	if eb.clients[jobID] == nil {
		eb.clients[jobID] = make(map[chan ProgressEvent]bool)
	}
	eb.clients[jobID][ch] = true

	if last, ok := eb.lastEvent[jobID]; ok {
		select {
		case ch <- last:
		default:
		}
	}

	slog.Debug("SSE client subscribed", "job_id", jobID, "total_clients", len(eb.clients[jobID]))
	return ch
}

// Unsubscribe removes a client channel and closes it.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[jobID]; ok {
		delete(clients, ch)
		close(ch)
		if len(clients) == 0 {
			delete(eb.clients, jobID)
		}
	}

	slog.Debug("SSE client unsubscribed", "job_id", jobID)
}

// Broadcast sends an event to every subscriber of its job. Slow clients
// with full channels are skipped rather than blocked on.
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	eb.lastEvent[event.JobID] = event
	eb.mu.Unlock()

	// Unsubscribe closes channels under the write lock, so sends are
	// only safe while holding the read lock.
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	clients := eb.clients[event.JobID]
	if len(clients) == 0 {
		return
	}
	for ch := range clients {
		select {
		case ch <- event:
		default:
			slog.Warn("SSE channel full, skipping event", "job_id", event.JobID)
		}
	}
}

// handleJobEvents streams progress events for one job as SSE until the
// client disconnects or the job reaches a terminal state.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("Failed to marshal progress event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

			if event.State == store.StateCompleted ||
				event.State == store.StateFailed ||
				event.State == store.StateCancelled {
				return
			}
		}
	}
}
