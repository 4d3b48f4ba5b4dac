package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
)

func transientErr(msg string) error {
	return &apperr.ExtractError{Plugin: "test", Err: errors.New(msg), Transient: true}
}

func permanentErr(msg string) error {
	return &apperr.ExtractError{Plugin: "test", Err: errors.New(msg), Transient: false}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	result := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		return nil
	})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr("not yet")
		}
		return nil
	})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	result := Do(context.Background(), Config{MaxAttempts: 2, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return transientErr("always fails")
	})
	if result.Err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	result := Do(context.Background(), Config{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return permanentErr("malformed config")
	})
	if result.Err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call for a non-retryable error, got %d", calls)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
}

func TestDo_PlainErrorNotRetryable(t *testing.T) {
	calls := 0
	result := Do(context.Background(), Config{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.New("unclassified error")
	})
	if calls != 1 {
		t.Errorf("expected unclassified errors to not retry, got %d calls", calls)
	}
	_ = result
}

func TestDo_ContextCancelledStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	result := Do(ctx, Config{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return transientErr("fail")
	})
	if result.Err == nil {
		t.Fatal("expected error")
	}
	if calls > 2 {
		t.Errorf("expected retries to stop promptly after cancellation, got %d calls", calls)
	}
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		d := backoffWithJitter(base, 2, 0.2, attempt)
		if d < 0 {
			t.Errorf("attempt %d: negative delay %v", attempt, d)
		}
	}
}

func TestBackoffWithJitter_ZeroJitterIsExact(t *testing.T) {
	base := 100 * time.Millisecond
	d := backoffWithJitter(base, 2, 0, 0)
	if d != base {
		t.Errorf("expected exact base delay with zero jitter, got %v", d)
	}
	d1 := backoffWithJitter(base, 2, 0, 1)
	if d1 != 200*time.Millisecond {
		t.Errorf("expected 200ms at attempt 1, got %v", d1)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected 3 max attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("expected 1s base delay, got %v", cfg.BaseDelay)
	}
	if cfg.Factor != 2 {
		t.Errorf("expected factor 2, got %v", cfg.Factor)
	}
	if cfg.Jitter != 0.2 {
		t.Errorf("expected 0.2 jitter, got %v", cfg.Jitter)
	}
}
