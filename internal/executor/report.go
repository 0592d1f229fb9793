package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/yaxingson/mini-agent/internal/scheduler"
)

// TaskReport is the per-task slice of a run report.
type TaskReport struct {
	ID         string
	Operation  string
	RawInput   string
	DependsOn  []string
	State      scheduler.TaskState
	Result     string
	Error      string
	BlockedBy  string // set when the task drained without ever becoming ready
	StartedAt  *time.Time
	FinishedAt *time.Time
	Duration   time.Duration
}

// Blocked reports whether the task could never run.
func (t TaskReport) Blocked() bool { return t.BlockedBy != "" }

// Report is the outcome of one run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Tasks     []TaskReport      // graph insertion order
	Results   map[string]string // outputs of completed tasks
	Completed int
	Failed    int
	Blocked   int
	Pending   int // unstarted and not blocked; nonzero only for cancelled runs
}

// Ok reports whether every task completed.
func (r *Report) Ok() bool {
	return r.Failed == 0 && r.Blocked == 0 && r.Pending == 0
}

// buildReport snapshots the graph and classifies any leftover pending tasks.
func (e *Executor) buildReport(runID string, startedAt time.Time) *Report {
	tasks := e.graph.Tasks()

	report := &Report{
		RunID:     runID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Tasks:     make([]TaskReport, 0, len(tasks)),
		Results:   e.results.Snapshot(),
	}

	blockedReasons := classifyBlocked(tasks)

	for _, task := range tasks {
		tr := TaskReport{
			ID:         task.ID,
			Operation:  task.Operation,
			RawInput:   task.RawInput,
			DependsOn:  task.DependsOn,
			State:      task.State,
			Result:     task.Result,
			StartedAt:  task.StartedAt,
			FinishedAt: task.FinishedAt,
			Duration:   task.Duration(),
		}
		if task.Err != nil {
			tr.Error = task.Err.Error()
		}

		switch task.State {
		case scheduler.TaskCompleted:
			report.Completed++
		case scheduler.TaskFailed:
			report.Failed++
		case scheduler.TaskPending:
			if reason, ok := blockedReasons[task.ID]; ok {
				tr.BlockedBy = reason
				report.Blocked++
			} else {
				report.Pending++
			}
		}

		report.Tasks = append(report.Tasks, tr)
	}

	return report
}

// classifyBlocked maps every pending task that can never become ready to a
// reason. A task is blocked when a dependency failed, or when a dependency
// is itself blocked. The graph is validated acyclic before any run, so the
// recursion terminates.
func classifyBlocked(tasks []*scheduler.Task) map[string]string {
	states := make(map[string]scheduler.TaskState, len(tasks))
	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		states[t.ID] = t.State
		deps[t.ID] = t.DependsOn
	}

	reasons := make(map[string]string)

	var blocked func(id string) bool
	blocked = func(id string) bool {
		if _, done := reasons[id]; done {
			return true
		}
		if states[id] != scheduler.TaskPending {
			return false
		}
		for _, depID := range deps[id] {
			if states[depID] == scheduler.TaskFailed {
				reasons[id] = fmt.Sprintf("dependency %q failed", depID)
				return true
			}
			if blocked(depID) {
				reasons[id] = fmt.Sprintf("dependency %q is blocked", depID)
				return true
			}
		}
		return false
	}

	for _, t := range tasks {
		blocked(t.ID)
	}

	return reasons
}

// Summary renders the post-run display: one line per task with its status
// glyph and duration, then the result or failure cause indented beneath.
func (r *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s finished in %.2fs: %d completed, %d failed, %d blocked",
		r.RunID, r.Duration.Seconds(), r.Completed, r.Failed, r.Blocked)
	if r.Pending > 0 {
		fmt.Fprintf(&b, ", %d not started", r.Pending)
	}
	b.WriteString("\n")

	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "  %s %s: %s[%s]", stateSymbol(t.State), t.ID, t.Operation, t.RawInput)
		if t.StartedAt != nil && t.FinishedAt != nil {
			fmt.Fprintf(&b, " (%.2fs)", t.Duration.Seconds())
		}
		b.WriteString("\n")

		switch t.State {
		case scheduler.TaskCompleted:
			if t.Result != "" {
				fmt.Fprintf(&b, "      result: %s\n", t.Result)
			}
		case scheduler.TaskFailed:
			fmt.Fprintf(&b, "      error: %s\n", t.Error)
		default:
			if t.BlockedBy != "" {
				fmt.Fprintf(&b, "      blocked: %s\n", t.BlockedBy)
			}
		}
	}

	return b.String()
}

func stateSymbol(s scheduler.TaskState) string {
	switch s {
	case scheduler.TaskRunning:
		return "⟳"
	case scheduler.TaskCompleted:
		return "✓"
	case scheduler.TaskFailed:
		return "✗"
	default:
		return "○"
	}
}
