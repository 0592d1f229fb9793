package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yaxingson/mini-agent/internal/executor"
	"github.com/yaxingson/mini-agent/internal/persistence"
	"github.com/yaxingson/mini-agent/internal/scheduler"
	"github.com/yaxingson/mini-agent/internal/tool"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := persistence.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry, err := tool.DefaultRegistry(tool.Options{})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	return NewServer(store, registry, "localhost", 0)
}

// saveTestRun stores a small finished run.
func saveTestRun(t *testing.T, srv *Server, runID string) {
	t.Helper()

	started := time.Now().Add(-time.Minute)
	finished := started.Add(30 * time.Millisecond)
	report := &executor.Report{
		RunID:     runID,
		StartedAt: started,
		Duration:  40 * time.Millisecond,
		Completed: 1,
		Tasks: []executor.TaskReport{
			{
				ID:         "A",
				Operation:  "const",
				RawInput:   "2",
				State:      scheduler.TaskCompleted,
				Result:     "2",
				StartedAt:  &started,
				FinishedAt: &finished,
				Duration:   finished.Sub(started),
			},
		},
		Results: map[string]string{"A": "2"},
	}
	if err := srv.store.SaveRun(context.Background(), report); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status %q, got %q", "ok", body["status"])
	}
}

func TestHandleOperations(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/operations", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	names := make(map[string]bool)
	for _, op := range body {
		names[op["name"]] = true
		if op["description"] == "" {
			t.Errorf("operation %q has no description", op["name"])
		}
	}
	for _, want := range []string{"calculator", "clock", "const", "search"} {
		if !names[want] {
			t.Errorf("expected operation %q in catalog", want)
		}
	}
}

func TestHandleRuns(t *testing.T) {
	srv := newTestServer(t)
	saveTestRun(t, srv, "run_api11111")
	saveTestRun(t, srv, "run_api22222")

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected 1 run with limit=1, got %d", len(body))
	}
	if body[0]["total"].(float64) != 1 {
		t.Errorf("expected total 1, got %v", body[0]["total"])
	}
}

func TestHandleRun(t *testing.T) {
	srv := newTestServer(t)
	saveTestRun(t, srv, "run_api33333")

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run_api33333", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body struct {
		RunID string `json:"run_id"`
		Tasks []struct {
			TaskID string `json:"task_id"`
			State  string `json:"state"`
			Result string `json:"result"`
		} `json:"tasks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.RunID != "run_api33333" {
		t.Errorf("run_id = %q", body.RunID)
	}
	if len(body.Tasks) != 1 || body.Tasks[0].TaskID != "A" {
		t.Fatalf("unexpected tasks: %+v", body.Tasks)
	}
	if body.Tasks[0].State != "completed" || body.Tasks[0].Result != "2" {
		t.Errorf("task A = %+v", body.Tasks[0])
	}
}

func TestHandleRun_NotFound(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run_missing", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestHandleRunEvents(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if err := srv.store.SaveEvent(ctx, "run_api44444", "A", "task.started", ""); err != nil {
		t.Fatalf("failed to save event: %v", err)
	}
	if err := srv.store.SaveEvent(ctx, "run_api44444", "A", "task.completed", "result: 2"); err != nil {
		t.Fatalf("failed to save event: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run_api44444/events", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("expected 2 events, got %d", len(body))
	}
	if body[0]["event_type"] != "task.started" || body[1]["event_type"] != "task.completed" {
		t.Errorf("unexpected event order: %+v", body)
	}
	if body[1]["detail"] != "result: 2" {
		t.Errorf("unexpected detail: %q", body[1]["detail"])
	}
}
