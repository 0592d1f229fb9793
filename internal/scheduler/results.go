package scheduler

import (
	"fmt"
	"sync"
)

// Results is the shared store of completed task outputs. Each key is written
// exactly once, by the completion path of the task that owns it; dependents
// read it concurrently during input resolution.
type Results struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewResults creates an empty result store.
func NewResults() *Results {
	return &Results{m: make(map[string]string)}
}

// Set records the output of a completed task. A second write to the same key
// indicates a scheduling bug and is rejected.
func (r *Results) Set(taskID, output string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[taskID]; exists {
		return fmt.Errorf("result for task %q already recorded", taskID)
	}
	r.m[taskID] = output
	return nil
}

// Get returns the stored output for a task, if any.
func (r *Results) Get(taskID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out, ok := r.m[taskID]
	return out, ok
}

// Len returns the number of recorded results.
func (r *Results) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// Snapshot returns a copy of the store for reporting.
func (r *Results) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out
}
