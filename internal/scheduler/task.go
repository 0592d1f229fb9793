package scheduler

import "time"

// TaskState represents the current state of a task.
type TaskState int

const (
	TaskPending   TaskState = iota // Waiting for dependencies
	TaskRunning                    // Handler currently executing
	TaskCompleted                  // Finished successfully
	TaskFailed                     // Finished with error
)

// String returns the lowercase name used in reports, events and persistence.
func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is absorbing.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task represents a unit of work in the graph.
type Task struct {
	ID         string     // Unique identifier within a graph
	Operation  string     // Key into the handler registry
	RawInput   string     // Input payload, may embed $id references
	DependsOn  []string   // Task IDs that must complete first
	State      TaskState
	Result     string     // Handler output (populated on completion)
	Err        error      // Failure cause (populated on failure)
	StartedAt  *time.Time // Stamped when the task transitions to running
	FinishedAt *time.Time // Stamped when the handler returns
}

// Duration returns wall time between start and finish, or zero if the task
// never ran to a terminal state.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}
