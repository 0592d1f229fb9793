package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// flakyHandler is a scripted handler for testing retry behavior.
type flakyHandler struct {
	mu        sync.Mutex
	responses []any // Each entry is either a string result or an error
	callCount int
}

func (f *flakyHandler) Name() string        { return "flaky" }
func (f *flakyHandler) Description() string { return "scripted test handler" }

func (f *flakyHandler) Invoke(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.callCount >= len(f.responses) {
		return "", fmt.Errorf("unexpected call %d (only %d responses configured)", f.callCount+1, len(f.responses))
	}

	resp := f.responses[f.callCount]
	f.callCount++

	switch v := resp.(type) {
	case string:
		return v, nil
	case error:
		return "", v
	default:
		return "", fmt.Errorf("invalid response type: %T", v)
	}
}

func (f *flakyHandler) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     10 * time.Millisecond,
		MaxInterval:         50 * time.Millisecond,
		MaxElapsedTime:      1 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// TestResilient_TransientThenSuccess verifies transient failures are retried
// inside a single invocation.
func TestResilient_TransientThenSuccess(t *testing.T) {
	flaky := &flakyHandler{
		responses: []any{
			fmt.Errorf("transient error 1"),
			fmt.Errorf("transient error 2"),
			"success",
		},
	}

	cb := NewBreakerRegistry().Get("flaky")
	h := Resilient(flaky, cb, fastRetryConfig())

	out, err := h.Invoke(context.Background(), "test")
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if out != "success" {
		t.Errorf("expected output %q, got %q", "success", out)
	}
	if flaky.CallCount() != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", flaky.CallCount())
	}
}

// TestResilient_PersistentFailure_CircuitOpens verifies the breaker opens
// after consecutive failures.
func TestResilient_PersistentFailure_CircuitOpens(t *testing.T) {
	flaky := &flakyHandler{
		responses: make([]any, 50), // More than enough for the circuit to open
	}
	for i := range flaky.responses {
		flaky.responses[i] = fmt.Errorf("persistent error %d", i+1)
	}

	cb := NewBreakerRegistry().Get("flaky")
	retryCfg := fastRetryConfig()
	retryCfg.MaxElapsedTime = 500 * time.Millisecond // Short timeout for testing
	h := Resilient(flaky, cb, retryCfg)

	ctx := context.Background()

	// Circuit trips after 5 consecutive failures
	for i := range 7 {
		_, err := h.Invoke(ctx, "test")
		if err == nil {
			t.Errorf("call %d: expected error, got success", i+1)
		}

		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Logf("call %d: circuit open (expected)", i+1)
			return // Test passed
		}
	}

	if state := cb.State(); state != gobreaker.StateOpen {
		t.Errorf("expected circuit to be open after 7 invocations, got state: %v", state)
	}
}

// TestResilient_ContextCancelledStopsRetry verifies cancellation interrupts
// the retry loop instead of waiting out MaxElapsedTime.
func TestResilient_ContextCancelledStopsRetry(t *testing.T) {
	flaky := &flakyHandler{
		responses: make([]any, 100),
	}
	for i := range flaky.responses {
		flaky.responses[i] = fmt.Errorf("error %d", i+1)
	}

	cb := NewBreakerRegistry().Get("flaky")
	retryCfg := fastRetryConfig()
	retryCfg.InitialInterval = 50 * time.Millisecond
	retryCfg.MaxElapsedTime = 10 * time.Second // Long timeout - should be interrupted by context
	h := Resilient(flaky, cb, retryCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := h.Invoke(ctx, "test")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error due to context cancellation")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got: %v", err)
	}

	// Should return quickly, not wait for MaxElapsedTime
	if elapsed > 500*time.Millisecond {
		t.Errorf("Invoke took %v, expected < 500ms (context should stop retries)", elapsed)
	}
}

// TestBreakerRegistry_PerHandler verifies breakers are shared per name and
// distinct across names.
func TestBreakerRegistry_PerHandler(t *testing.T) {
	registry := NewBreakerRegistry()

	cb1a := registry.Get("calculator")
	cb1b := registry.Get("calculator")
	cb2 := registry.Get("search")

	if cb1a != cb1b {
		t.Error("expected same circuit breaker instance for 'calculator'")
	}
	if cb1a == cb2 {
		t.Error("expected different circuit breaker instances for 'calculator' and 'search'")
	}

	if cb1a.Name() != "calculator" {
		t.Errorf("expected breaker name %q, got %q", "calculator", cb1a.Name())
	}
	if cb2.Name() != "search" {
		t.Errorf("expected breaker name %q, got %q", "search", cb2.Name())
	}
}

// TestBreaker_CancellationNotCounted verifies cancellations do not trip the
// circuit.
func TestBreaker_CancellationNotCounted(t *testing.T) {
	cb := NewBreakerRegistry().Get("flaky")
	flaky := &flakyHandler{responses: make([]any, 10)}
	for i := range flaky.responses {
		flaky.responses[i] = context.Canceled
	}
	h := Resilient(flaky, cb, fastRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := range 5 {
		if _, err := h.Invoke(ctx, "test"); err == nil {
			t.Errorf("call %d: expected error, got success", i+1)
		}
	}

	if state := cb.State(); state != gobreaker.StateClosed {
		t.Errorf("expected circuit to remain closed after cancellations, got state: %v", state)
	}
}
