package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yaxingson/mini-agent/internal/events"
	"github.com/yaxingson/mini-agent/internal/scheduler"
	"github.com/yaxingson/mini-agent/internal/tool"
)

// DefaultWorkers bounds concurrent handler invocations when the config does
// not say otherwise.
const DefaultWorkers = 3

// ErrTasksBlocked reports that a run drained with tasks that can never
// become ready.
var ErrTasksBlocked = errors.New("tasks permanently blocked")

// Config configures a single run.
type Config struct {
	RunID       string        // Pre-assigned run identifier, empty generates one
	Workers     int           // Worker pool size (default DefaultWorkers)
	TaskTimeout time.Duration // Per-handler time budget, zero disables it
	Bus         *events.Bus   // Optional lifecycle event sink
}

// Executor drives one graph through a bounded worker pool. Completions are
// signaled on a channel; there is no polling loop.
type Executor struct {
	graph    *scheduler.Graph
	registry *tool.Registry
	results  *scheduler.Results
	cfg      Config
}

// New creates an executor for one run of the given graph. Graphs are
// single-use; create a fresh executor per run.
func New(graph *scheduler.Graph, registry *tool.Registry, cfg Config) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Executor{
		graph:    graph,
		registry: registry,
		results:  scheduler.NewResults(),
		cfg:      cfg,
	}
}

// Run validates the graph, then executes it to quiescence: every task either
// reaches a terminal state or is classified blocked in the report. Task
// failures never abort the run; the error return is reserved for validation
// failures, context cancellation, and the blocked condition.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	if _, err := e.graph.Validate(); err != nil {
		return nil, err
	}

	runID := e.cfg.RunID
	if runID == "" {
		runID = NewRunID()
	}
	startedAt := time.Now()
	total := e.graph.Len()

	slog.Info("run started", "run_id", runID, "tasks", total, "workers", e.cfg.Workers)

	// Both channels are buffered for the whole graph so neither the
	// coordinator nor a worker can block on a send.
	workCh := make(chan string, total)
	doneCh := make(chan string, total)

	g, gctx := errgroup.WithContext(ctx)
	for range e.cfg.Workers {
		g.Go(func() error {
			for taskID := range workCh {
				if gctx.Err() == nil {
					e.runTask(gctx, taskID)
				}
				doneCh <- taskID
			}
			return nil
		})
	}

	var stopOnce sync.Once
	stopWorkers := func() {
		stopOnce.Do(func() {
			close(workCh)
			_ = g.Wait()
		})
	}

	dispatched := make(map[string]bool, total)
	inFlight := 0

	for {
		// Cancellation may be observed by a worker first; re-check here so
		// the run never reports a cancelled drain as a clean finish.
		if err := ctx.Err(); err != nil {
			stopWorkers()
			return e.buildReport(runID, startedAt), err
		}

		// Hand every ready, not-yet-dispatched task to the pool. Ready is
		// monotonic for a given task: once its dependencies have completed
		// they stay completed.
		for _, task := range e.graph.Ready() {
			if dispatched[task.ID] {
				continue
			}
			dispatched[task.ID] = true
			inFlight++
			workCh <- task.ID
		}

		// Nothing in flight and nothing became ready: the run has drained.
		if inFlight == 0 {
			break
		}

		select {
		case <-ctx.Done():
			stopWorkers()
			return e.buildReport(runID, startedAt), ctx.Err()
		case <-doneCh:
			inFlight--
			e.publishProgress(runID, total)
		}
	}

	stopWorkers()

	report := e.buildReport(runID, startedAt)

	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(events.TopicRun, events.RunFinishedEvent{
			RunID:     runID,
			Completed: report.Completed,
			Failed:    report.Failed,
			Blocked:   report.Blocked,
			Duration:  report.Duration,
			Timestamp: time.Now(),
		})
	}

	slog.Info("run finished",
		"run_id", runID,
		"completed", report.Completed,
		"failed", report.Failed,
		"blocked", report.Blocked,
		"duration", report.Duration)

	if report.Blocked > 0 {
		blocked := make([]string, 0, report.Blocked)
		for _, t := range report.Tasks {
			if t.BlockedBy != "" {
				blocked = append(blocked, t.ID)
			}
		}
		return report, fmt.Errorf("%w: %s", ErrTasksBlocked, strings.Join(blocked, ", "))
	}

	return report, nil
}

// runTask executes a single task: mark running, resolve references, invoke
// the handler, then record the outcome. The result store entry is written
// before the completed transition so a dependent can never observe a
// completed dependency whose result is missing.
func (e *Executor) runTask(ctx context.Context, taskID string) {
	if err := e.graph.MarkRunning(taskID); err != nil {
		// The transition guard refused the dispatch; never run a task twice.
		slog.Error("dispatch refused", "task", taskID, "error", err)
		return
	}

	task, ok := e.graph.Get(taskID)
	if !ok {
		return
	}

	e.publishTask(events.TaskStartedEvent{
		ID:        task.ID,
		Operation: task.Operation,
		Timestamp: time.Now(),
	})
	slog.Debug("task started", "task", task.ID, "operation", task.Operation)

	input := scheduler.Resolve(task.RawInput, e.results)

	invokeCtx := ctx
	if e.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
		defer cancel()
	}

	output, err := e.registry.Invoke(invokeCtx, task.Operation, input)
	if err == nil {
		err = e.results.Set(task.ID, output)
	}
	if err != nil {
		_ = e.graph.MarkFailed(task.ID, err)
		slog.Warn("task failed", "task", task.ID, "operation", task.Operation, "error", err)
		e.publishTask(events.TaskFailedEvent{
			ID:        task.ID,
			Err:       err,
			Duration:  time.Since(*task.StartedAt),
			Timestamp: time.Now(),
		})
		return
	}

	_ = e.graph.MarkCompleted(task.ID, output)
	slog.Debug("task completed", "task", task.ID, "duration", time.Since(*task.StartedAt))
	e.publishTask(events.TaskCompletedEvent{
		ID:        task.ID,
		Result:    output,
		Duration:  time.Since(*task.StartedAt),
		Timestamp: time.Now(),
	})
}

func (e *Executor) publishTask(ev events.Event) {
	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(events.TopicTask, ev)
	}
}

func (e *Executor) publishProgress(runID string, total int) {
	if e.cfg.Bus == nil {
		return
	}
	pending, running, completed, failed := e.graph.Counts()
	e.cfg.Bus.Publish(events.TopicRun, events.RunProgressEvent{
		RunID:     runID,
		Total:     total,
		Completed: completed,
		Running:   running,
		Failed:    failed,
		Pending:   pending,
		Timestamp: time.Now(),
	})
}

// NewRunID creates a short unique run identifier. Callers that need the ID
// before the run starts (workspace directories, history records) generate one
// and pass it through Config.RunID.
func NewRunID() string {
	u := uuid.New().String()
	return "run_" + strings.ReplaceAll(u[:8], "-", "")
}
