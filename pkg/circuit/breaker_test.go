package circuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	isErrors "github.com/bardlex/ironshield/pkg/errors"
)

var errDependency = errors.New("dependency down")

func testConfig() *Config {
	return &Config{
		Name:            "challenge-api",
		MaxFailures:     2,
		SuccessRequired: 1,
		Timeout:         20 * time.Millisecond,
		ResetTimeout:    time.Minute,
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for range 2 {
		if err := cb.Execute(ctx, func() error { return errDependency }); !errors.Is(err, errDependency) {
			t.Fatalf("Expected dependency error, got %v", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open, got %v", cb.GetState())
	}

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	if called {
		t.Error("Expected call to be rejected while open")
	}
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got %v", err)
	}
	if got := isErrors.GetContext(err)["dependency"]; got != "challenge-api" {
		t.Errorf("Expected dependency context, got %v", got)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	var mu sync.Mutex
	var transitions []State
	config := testConfig()
	config.OnStateChange = func(_ string, _, to State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	}
	cb := New(config)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errDependency })
	_ = cb.Execute(ctx, func() error { return errDependency })

	time.Sleep(30 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Expected probe to succeed, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed after recovery, got %v", cb.GetState())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errDependency })
	_ = cb.Execute(ctx, func() error { return errDependency })
	time.Sleep(30 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errDependency })
	if cb.GetState() != StateOpen {
		t.Errorf("Expected open after failed probe, got %v", cb.GetState())
	}
}

func TestBreaker_CancelledContextNotCounted(t *testing.T) {
	cb := New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	for range 3 {
		_ = cb.Execute(ctx, func() error {
			cancel()
			return context.Canceled
		})
	}

	if stats := cb.GetStats(); stats.Failures != 0 {
		t.Errorf("Expected 0 failures, got %d", stats.Failures)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed, got %v", cb.GetState())
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb := New(nil)

	got, err := ExecuteWithResult(context.Background(), cb, func() (int, error) {
		return 402, nil
	})
	if err != nil || got != 402 {
		t.Errorf("ExecuteWithResult() = %d, %v; want 402, nil", got, err)
	}

	if stats := cb.GetStats(); stats.Successes != 1 {
		t.Errorf("Expected 1 success, got %d", stats.Successes)
	}
}

func TestBreaker_IsFailureFiltersErrors(t *testing.T) {
	errRejected := errors.New("rejected by dependency")

	cfg := testConfig()
	cfg.IsFailure = func(err error) bool { return !errors.Is(err, errRejected) }
	cb := New(cfg)
	ctx := context.Background()

	for range 5 {
		if err := cb.Execute(ctx, func() error { return errRejected }); !errors.Is(err, errRejected) {
			t.Fatalf("Expected rejection to be returned, got %v", err)
		}
	}

	stats := cb.GetStats()
	if stats.State != StateClosed || stats.Failures != 0 || stats.Successes != 5 {
		t.Errorf("Expected closed breaker with 5 successes, got %+v", stats)
	}

	_ = cb.Execute(ctx, func() error { return errDependency })
	_ = cb.Execute(ctx, func() error { return errDependency })
	if cb.GetState() != StateOpen {
		t.Errorf("Expected open after counted failures, got %v", cb.GetState())
	}
}
