package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnknownOperation is reported when a task names an operation with no
// registered handler. The executor surfaces it as that task's failure, not
// as a run-level error.
var ErrUnknownOperation = errors.New("unknown operation")

// Handler is the capability behind a task's operation. Handlers are invoked
// concurrently from multiple workers and must be safe for that.
type Handler interface {
	// Name returns the operation name tasks use to select this handler.
	Name() string

	// Description returns a one-line summary for listings.
	Description() string

	// Invoke performs the operation on an already-resolved input.
	Invoke(ctx context.Context, input string) (string, error)
}

// Registry maps operation names to handlers. It lives outside the scheduler
// core: new operations are added here without touching scheduling logic.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler under its own name. Registering the same name
// twice is a wiring mistake and fails.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := h.Name()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Get returns the handler for an operation name.
func (r *Registry) Get(operation string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[operation]
	return h, ok
}

// Invoke looks up the handler for operation and calls it.
func (r *Registry) Invoke(ctx context.Context, operation, input string) (string, error) {
	h, ok := r.Get(operation)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
	return h.Invoke(ctx, input)
}

// Names returns all registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handlers returns the registered handlers sorted by name.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	sort.Slice(handlers, func(i, j int) bool { return handlers[i].Name() < handlers[j].Name() })
	return handlers
}

// funcHandler adapts a plain function to the Handler interface.
type funcHandler struct {
	name        string
	description string
	fn          func(ctx context.Context, input string) (string, error)
}

// FuncHandler wraps a function as a Handler.
func FuncHandler(name, description string, fn func(ctx context.Context, input string) (string, error)) Handler {
	return &funcHandler{name: name, description: description, fn: fn}
}

func (f *funcHandler) Name() string        { return f.name }
func (f *funcHandler) Description() string { return f.description }

func (f *funcHandler) Invoke(ctx context.Context, input string) (string, error) {
	return f.fn(ctx, input)
}

// simulateLatency blocks for d or until the context is cancelled. The demo
// handlers use it to stand in for real I/O; a zero duration returns
// immediately.
func simulateLatency(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
