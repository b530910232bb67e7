package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	errs "tgrab/pkg/errors"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ExponentialBackoff{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeTransport, "flaky")
		}
		return nil
	}, fastConfig(5))

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeTransport, "always down")
	}, fastConfig(3))

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.NewHTTP(404, "not found")
	}, fastConfig(5))

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig(5)
	cfg.Context = ctx
	cfg.Backoff = &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 1.0}

	err := Do(func() error {
		return errs.New(errs.ErrorTypeTransport, "flaky")
	}, cfg)

	if err == nil {
		t.Fatal("Expected cancellation error")
	}
}

func TestExponentialBackoffGrows(t *testing.T) {
	eb := &ExponentialBackoff{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 4; attempt++ {
		d := eb.NextDelay(attempt)
		if d <= prev {
			t.Errorf("Expected delay to grow at attempt %d: %v <= %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestExponentialBackoffCaps(t *testing.T) {
	eb := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10.0}

	if d := eb.NextDelay(5); d > 2*time.Second {
		t.Errorf("Expected delay capped at 2s, got %v", d)
	}
}

func TestDefaultRetryIfPlainErrors(t *testing.T) {
	if !DefaultRetryIf(fmt.Errorf("opaque")) {
		t.Error("Expected opaque errors to be retryable by default")
	}
	if DefaultRetryIf(nil) {
		t.Error("Expected nil to not be retryable")
	}
	if DefaultRetryIf(errs.New(errs.ErrorTypeForbidden, "nope")) {
		t.Error("Expected forbidden errors to not be retryable")
	}
}
