package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// Errors reported during graph construction and validation.
var (
	ErrDuplicateTask     = errors.New("duplicate task ID")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCycle             = errors.New("dependency cycle detected")
)

// Graph is a directed acyclic graph of tasks. It is built once before a run;
// there is no removal and no insertion after execution starts.
type Graph struct {
	mu    sync.RWMutex
	tasks map[string]*Task // All tasks indexed by ID
	order []string         // Insertion order, for deterministic iteration
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		tasks: make(map[string]*Task),
	}
}

// AddTask registers a task. Returns an error wrapping ErrDuplicateTask if the
// ID is already taken.
func (g *Graph) AddTask(task *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}

	g.tasks[task.ID] = task
	g.order = append(g.order, task.ID)

	return nil
}

// Validate checks that every dependency references a task in the graph and
// that the dependency relation is acyclic. Returns a topological order of
// task IDs on success.
func (g *Graph) Validate() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Unknown references first, in insertion order for stable messages.
	for _, taskID := range g.order {
		for _, depID := range g.tasks[taskID].DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				return nil, fmt.Errorf("%w: task %q depends on %q", ErrUnknownDependency, taskID, depID)
			}
		}
	}

	// Build edges for topological sort. Tasks with no dependencies get a
	// nil-source edge so they are not lost from the sort.
	var edges []toposort.Edge
	for _, taskID := range g.order {
		task := g.tasks[taskID]
		if len(task.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, taskID})
		} else {
			for _, depID := range task.DependsOn {
				// Edge (depID, taskID) means depID must come before taskID.
				edges = append(edges, toposort.Edge{depID, taskID})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// A sort that lost tasks means the edge set was inconsistent.
	if len(order) != len(g.tasks) {
		missing := []string{}
		found := make(map[string]bool)
		for _, id := range order {
			found[id] = true
		}
		for _, taskID := range g.order {
			if !found[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Ready returns every pending task whose dependencies have all completed.
// A failed dependency keeps its dependents out of the ready set permanently;
// the executor reports them as blocked when the run drains.
func (g *Graph) Ready() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := []*Task{}

	for _, taskID := range g.order {
		task := g.tasks[taskID]
		if task.State != TaskPending {
			continue
		}

		satisfied := true
		for _, depID := range task.DependsOn {
			dep, exists := g.tasks[depID]
			if !exists || dep.State != TaskCompleted {
				satisfied = false
				break
			}
		}

		if satisfied {
			ready = append(ready, cloneTask(task))
		}
	}

	return ready
}

// MarkRunning transitions a task from pending to running and stamps its
// start time. Rejects any other transition so a task can never be
// dispatched twice.
func (g *Graph) MarkRunning(taskID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if task.State != TaskPending {
		return fmt.Errorf("task %q is not pending (state: %s)", taskID, task.State)
	}

	now := time.Now()
	task.State = TaskRunning
	task.StartedAt = &now
	return nil
}

// MarkCompleted transitions a running task to completed and records its
// result. The result is written once; terminal states are absorbing.
func (g *Graph) MarkCompleted(taskID string, result string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if task.State != TaskRunning {
		return fmt.Errorf("task %q is not running (state: %s)", taskID, task.State)
	}

	now := time.Now()
	task.State = TaskCompleted
	task.Result = result
	task.FinishedAt = &now
	return nil
}

// MarkFailed transitions a running task to failed and records the cause.
// Pending dependents of a failed task stay pending forever.
func (g *Graph) MarkFailed(taskID string, taskErr error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if task.State != TaskRunning {
		return fmt.Errorf("task %q is not running (state: %s)", taskID, task.State)
	}

	now := time.Now()
	task.State = TaskFailed
	task.Err = taskErr
	task.FinishedAt = &now
	return nil
}

// Get returns a copy of the task with the given ID.
func (g *Graph) Get(taskID string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks in insertion order.
func (g *Graph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.order))
	for _, taskID := range g.order {
		tasks = append(tasks, cloneTask(g.tasks[taskID]))
	}
	return tasks
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Counts returns the number of tasks per state.
func (g *Graph) Counts() (pending, running, completed, failed int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, task := range g.tasks {
		switch task.State {
		case TaskPending:
			pending++
		case TaskRunning:
			running++
		case TaskCompleted:
			completed++
		case TaskFailed:
			failed++
		}
	}
	return
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.StartedAt != nil {
		t := *task.StartedAt
		cp.StartedAt = &t
	}
	if task.FinishedAt != nil {
		t := *task.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
