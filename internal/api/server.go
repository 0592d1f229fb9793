package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yaxingson/mini-agent/internal/persistence"
	"github.com/yaxingson/mini-agent/internal/tool"
)

// Server exposes run history and the operation catalog over HTTP.
type Server struct {
	httpServer *http.Server
	store      persistence.Store
	registry   *tool.Registry
	host       string
	port       int
}

// NewServer creates the API server.
func NewServer(store persistence.Store, registry *tool.Registry, host string, port int) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		store:    store,
		registry: registry,
		host:     host,
		port:     port,
	}

	// Routes
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/operations", s.handleOperations)

	// API: run history
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/runs/{runID}", s.handleRun)
	r.Get("/api/runs/{runID}/events", s.handleRunEvents)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("api listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type operationJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	handlers := s.registry.Handlers()

	result := make([]operationJSON, len(handlers))
	for i, h := range handlers {
		result[i] = operationJSON{Name: h.Name(), Description: h.Description()}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type runSummaryJSON struct {
	RunID     string `json:"run_id"`
	StartedAt string `json:"started_at"`
	Duration  string `json:"duration"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Blocked   int    `json:"blocked"`
	Pending   int    `json:"pending"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := make([]runSummaryJSON, len(runs))
	for i, run := range runs {
		result[i] = runSummaryJSON{
			RunID:     run.RunID,
			StartedAt: run.StartedAt.Format(time.RFC3339Nano),
			Duration:  run.Duration.String(),
			Total:     run.Total,
			Completed: run.Completed,
			Failed:    run.Failed,
			Blocked:   run.Blocked,
			Pending:   run.Pending,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type taskJSON struct {
	TaskID     string   `json:"task_id"`
	Operation  string   `json:"operation"`
	RawInput   string   `json:"raw_input"`
	DependsOn  []string `json:"depends_on,omitempty"`
	State      string   `json:"state"`
	Result     string   `json:"result,omitempty"`
	Error      string   `json:"error,omitempty"`
	BlockedBy  string   `json:"blocked_by,omitempty"`
	StartedAt  string   `json:"started_at,omitempty"`
	FinishedAt string   `json:"finished_at,omitempty"`
	Duration   string   `json:"duration"`
}

type runJSON struct {
	RunID     string     `json:"run_id"`
	StartedAt string     `json:"started_at"`
	Duration  string     `json:"duration"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Blocked   int        `json:"blocked"`
	Pending   int        `json:"pending"`
	Tasks     []taskJSON `json:"tasks"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := runJSON{
		RunID:     run.RunID,
		StartedAt: run.StartedAt.Format(time.RFC3339Nano),
		Duration:  run.Duration.String(),
		Completed: run.Completed,
		Failed:    run.Failed,
		Blocked:   run.Blocked,
		Pending:   run.Pending,
		Tasks:     make([]taskJSON, len(run.Tasks)),
	}
	for i, task := range run.Tasks {
		tj := taskJSON{
			TaskID:    task.TaskID,
			Operation: task.Operation,
			RawInput:  task.RawInput,
			DependsOn: task.DependsOn,
			State:     task.State,
			Result:    task.Result,
			Error:     task.Error,
			BlockedBy: task.BlockedBy,
			Duration:  task.Duration.String(),
		}
		if task.StartedAt != nil {
			tj.StartedAt = task.StartedAt.Format(time.RFC3339Nano)
		}
		if task.FinishedAt != nil {
			tj.FinishedAt = task.FinishedAt.Format(time.RFC3339Nano)
		}
		result.Tasks[i] = tj
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type eventJSON struct {
	TaskID    string `json:"task_id,omitempty"`
	EventType string `json:"event_type"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	events, err := s.store.GetEvents(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := make([]eventJSON, len(events))
	for i, ev := range events {
		result[i] = eventJSON{
			TaskID:    ev.TaskID,
			EventType: ev.EventType,
			Detail:    ev.Detail,
			Timestamp: ev.Timestamp.Format(time.RFC3339Nano),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
