// Package server exposes asynchronous runs over a JSON HTTP API with an
// SSE progress stream. Each run gets its own workspace from the store,
// so any number of runs may execute concurrently.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openmdao-go/dakota-driver/internal/store"
	"github.com/openmdao-go/dakota-driver/internal/tabular"
)

// Server is the HTTP front end over the job manager and run store.
type Server struct {
	jobManager *JobManager
	runStore   store.Store
	addr       string
	server     *http.Server

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer creates a server that persists runs in runStore.
func NewServer(addr string, runStore store.Store) *Server {
	return &Server{
		jobManager: NewJobManager(),
		runStore:   runStore,
		addr:       addr,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Handler returns the routed handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)
	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")

	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/{id} and its subresources.
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteRun(w, r, jobID)
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetRun(w, r, jobID)
	case parts[1] == "results":
		s.handleGetResults(w, r, jobID)
	case parts[1] == "events":
		s.handleJobEvents(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/v1/runs: validate the request,
// register a job and launch the external run in the background.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.Problem.Method.Type == "" {
		http.Error(w, "problem.method.type is required", http.StatusBadRequest)
		return
	}
	if err := req.Problem.Problem().Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(req)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, job.ID)
			s.mu.Unlock()
			cancel()
		}()
		runJob(ctx, s.jobManager, s.runStore, job.ID)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.jobManager.ListJobs())
}

// handleGetRun handles GET /api/v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, _ *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		// Fall back to the store for runs from earlier server lifetimes.
		manifest, err := s.runStore.LoadManifest(jobID)
		if err != nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		writeJSON(w, manifest)
		return
	}
	writeJSON(w, job)
}

// handleGetResults handles GET /api/v1/runs/{id}/results
func (s *Server) handleGetResults(w http.ResponseWriter, _ *http.Request, jobID string) {
	manifest, err := s.runStore.LoadManifest(jobID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if manifest.Files.Tabular == "" {
		http.Error(w, "Run has no tabular output", http.StatusNotFound)
		return
	}

	table, err := tabular.ReadFile(s.runStore.RunDir(jobID) + "/" + manifest.Files.Tabular)
	if err != nil {
		if errors.Is(err, tabular.ErrParse) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "Results not available", http.StatusNotFound)
		return
	}
	writeJSON(w, table)
}

// handleDeleteRun handles DELETE /api/v1/runs/{id}: cancel if running,
// then drop the job and its workspace.
func (s *Server) handleDeleteRun(w http.ResponseWriter, _ *http.Request, jobID string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
	}
	s.mu.Unlock()

	removed := s.jobManager.RemoveJob(jobID)
	err := s.runStore.Delete(jobID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !removed && errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response with the standard header.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// loggingMiddleware logs each request with method, path and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
