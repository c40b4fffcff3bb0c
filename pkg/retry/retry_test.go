package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	isErrors "github.com/bardlex/ironshield/pkg/errors"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestConfigs(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		attempts  int
		baseDelay time.Duration
		maxDelay  time.Duration
	}{
		{"default", DefaultConfig(), 3, 100 * time.Millisecond, 5 * time.Second},
		{"network", NetworkConfig(), 5, 50 * time.Millisecond, 2 * time.Second},
		{"storage", StorageConfig(), 3, 200 * time.Millisecond, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config.MaxAttempts != tt.attempts {
				t.Errorf("MaxAttempts = %d, want %d", tt.config.MaxAttempts, tt.attempts)
			}
			if tt.config.BaseDelay != tt.baseDelay {
				t.Errorf("BaseDelay = %v, want %v", tt.config.BaseDelay, tt.baseDelay)
			}
			if tt.config.MaxDelay != tt.maxDelay {
				t.Errorf("MaxDelay = %v, want %v", tt.config.MaxDelay, tt.maxDelay)
			}
		})
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	config := fastConfig(3)
	config.OnRetry = func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), config, func() error {
		calls++
		if calls < 3 {
			return isErrors.New(isErrors.ErrorTypeNetwork, "fetch", "temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("Expected OnRetry for attempts [1 2], got %v", retried)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(4), func() error {
		calls++
		return isErrors.New(isErrors.ErrorTypeNetwork, "fetch", "persistent")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 4 {
		t.Errorf("Expected 4 calls, got %d", calls)
	}
	if !isErrors.IsType(err, isErrors.ErrorTypeInternal) {
		t.Errorf("Expected internal wrap, got %v", err)
	}
	if got := isErrors.GetContext(err)["max_attempts"]; got != 4 {
		t.Errorf("Expected max_attempts context 4, got %v", got)
	}
}

func TestDo_NonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", isErrors.New(isErrors.ErrorTypeValidation, "submit", "bad request")},
		{"plain error", errors.New("boom")},
		{"verification", isErrors.New(isErrors.ErrorTypeVerification, "solve", "rejected")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastConfig(5), func() error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected original error, got %v", err)
			}
			if calls != 1 {
				t.Errorf("Expected 1 call, got %d", calls)
			}
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &Config{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}

	calls := 0
	err := Do(ctx, config, func() error {
		calls++
		cancel()
		return isErrors.New(isErrors.ErrorTypeNetwork, "fetch", "temporary")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), nil, func() (string, error) {
		calls++
		if calls == 1 {
			return "", isErrors.New(isErrors.ErrorTypeTimeout, "fetch", "slow")
		}
		return "token", nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if got != "token" {
		t.Errorf("Expected 'token', got %q", got)
	}
}

func TestCalculateDelay(t *testing.T) {
	c := &Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2.0}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for attempt, w := range want {
		if got := c.calculateDelay(attempt); got != w {
			t.Errorf("calculateDelay(%d) = %v, want %v", attempt, got, w)
		}
	}

	c.Jitter = true
	d := c.calculateDelay(0)
	if d < 100*time.Millisecond || d > 110*time.Millisecond {
		t.Errorf("Jittered delay %v outside [100ms, 110ms]", d)
	}
}
