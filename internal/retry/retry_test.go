package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordingPolicy(maxAttempts int, baseDelay time.Duration, delays *[]time.Duration) Policy {
	p := New(maxAttempts, baseDelay)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestDoBackoffSchedule(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(3, 5000*time.Millisecond, &delays)

	boom := errors.New("boom")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	// 最终错误必须原样返回，不能被包装。
	if err != boom {
		t.Fatalf("expected original error, got %v", err)
	}
	if len(delays) != 2 || delays[0] != 5000*time.Millisecond || delays[1] != 10000*time.Millisecond {
		t.Fatalf("unexpected delays: %v", delays)
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(3, time.Second, &delays)

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return nil
		}
		return errors.New("transient")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if len(delays) != 1 {
		t.Fatalf("expected a single backoff wait, got %v", delays)
	}
}

func TestDoImmediateSuccess(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(3, time.Second, &delays)

	calls := 0
	if err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Fatalf("expected one attempt and no waits, got %d/%v", calls, delays)
	}
}

func TestDoContextCancelledDuringWait(t *testing.T) {
	p := New(3, time.Second)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("wait cancellation must stop further attempts, got %d", calls)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	p := New(0, 0)
	if p.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("unexpected max attempts: %d", p.MaxAttempts)
	}
	if p.BaseDelay != DefaultBaseDelay {
		t.Fatalf("unexpected base delay: %v", p.BaseDelay)
	}
}
