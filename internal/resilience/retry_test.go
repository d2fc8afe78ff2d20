package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_RetriesRateLimit(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("429 too many requests"), 429)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_BoundedAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("502 bad gateway"), 502)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentNotRetried(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return &PermanentError{Err: errors.New("403 forbidden"), StatusCode: 403}
	})
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("403 must be skipped immediately, got %d calls", calls)
	}
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	var calls int
	start := time.Now()
	err := Do(context.Background(), fastRetry(2), func(_ context.Context) error {
		calls++
		if calls == 1 {
			return &TransientError{Err: errors.New("429"), StatusCode: 429, RetryAfter: 30 * time.Millisecond}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected to wait for Retry-After, waited %s", elapsed)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"), 0)
	})
	if err == nil || calls != 1 {
		t.Errorf("expected a single call and an error, got %d calls, err=%v", calls, err)
	}
}

func TestDoVal_OnRetry(t *testing.T) {
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	var calls int
	got, err := DoVal(context.Background(), cfg, func(_ context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, NewTransientError(errors.New("503"), 503)
		}
		return []byte("%PDF"), nil
	})
	if err != nil || string(got) != "%PDF" {
		t.Fatalf("got %q, %v", got, err)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry attempts %v", retried)
	}
}

func TestComputeBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for attempt, w := range want {
		if got := computeBackoff(attempt, cfg); got != w {
			t.Errorf("attempt %d: got %s want %s", attempt, got, w)
		}
	}

	cfg.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay out of range: %s", d)
		}
	}
}

func TestFromFetchConfig(t *testing.T) {
	cfg := FromFetchConfig(4, 5)
	if cfg.MaxAttempts != 4 || cfg.InitialBackoff != 5*time.Second || cfg.MaxBackoff != 40*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
	if def := FromFetchConfig(0, 0); def.MaxAttempts != 3 {
		t.Errorf("expected default attempts, got %d", def.MaxAttempts)
	}

	bc := FromBreakerConfig(2, 10)
	if bc.Threshold != 2 || bc.Cooldown != 10*time.Second {
		t.Errorf("unexpected breaker config %+v", bc)
	}
}
