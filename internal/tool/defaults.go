package tool

import (
	"context"
	"time"
)

// Options configures the built-in handler set.
type Options struct {
	CalculatorLatency time.Duration
	SearchLatency     time.Duration
	FileLatency       time.Duration
	Knowledge         map[string]string // extra search entries, merged over the built-ins
	WorkspaceDir      string            // root for the file handlers; empty disables them
	Resilient         []string          // handler names wrapped with retry and a circuit breaker
	Retry             RetryConfig       // zero value means DefaultRetryConfig
}

// DefaultRegistry builds a registry holding the built-in demo handlers.
func DefaultRegistry(opts Options) (*Registry, error) {
	reg := NewRegistry()

	handlers := []Handler{
		FuncHandler("const", "Returns its input unchanged", func(_ context.Context, input string) (string, error) {
			return input, nil
		}),
		FuncHandler("clock", "Returns the current time as HH:MM:SS", func(_ context.Context, _ string) (string, error) {
			return time.Now().Format("15:04:05"), nil
		}),
		NewCalculator(opts.CalculatorLatency),
		NewSearch(opts.SearchLatency, opts.Knowledge),
	}

	if opts.WorkspaceDir != "" {
		w, r := NewFileHandlers(opts.WorkspaceDir, opts.FileLatency)
		handlers = append(handlers, w, r)
	}

	resilient := make(map[string]bool, len(opts.Resilient))
	for _, name := range opts.Resilient {
		resilient[name] = true
	}

	var breakers *BreakerRegistry
	if len(resilient) > 0 {
		breakers = NewBreakerRegistry()
	}

	retryCfg := opts.Retry
	if retryCfg == (RetryConfig{}) {
		retryCfg = DefaultRetryConfig()
	}

	for _, h := range handlers {
		if resilient[h.Name()] {
			h = Resilient(h, breakers.Get(h.Name()), retryCfg)
		}
		if err := reg.Register(h); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
