package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hookline/tow-bookings/pkg/retry"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	attempts, err := retry.Do(context.Background(), retry.Default(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 1 || calls != 1 {
		t.Fatalf("expected 1 attempt and 1 call, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestDo_FailTwiceThenSucceed(t *testing.T) {
	p := retry.Policy{MaxAttempts: 3, Backoff: retry.Linear(time.Millisecond)}

	calls := 0
	attempts, err := retry.Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts and 3 calls, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestDo_ExhaustsAndReturnsLastError(t *testing.T) {
	p := retry.Policy{MaxAttempts: 3, Backoff: retry.Linear(time.Millisecond)}
	lastErr := errors.New("still down")

	calls := 0
	attempts, err := retry.Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("down")
		}
		return lastErr
	})

	if !errors.Is(err, lastErr) {
		t.Fatalf("expected last error %v, got %v", lastErr, err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts and 3 calls, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestDo_LinearBackoffSchedule(t *testing.T) {
	step := 10 * time.Millisecond
	backoff := retry.Linear(step)

	for attempt := 1; attempt <= 3; attempt++ {
		want := time.Duration(attempt) * step
		if got := backoff(attempt); got != want {
			t.Fatalf("attempt %d: expected backoff %v, got %v", attempt, want, got)
		}
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	p := retry.Policy{MaxAttempts: 3, Backoff: retry.Linear(time.Hour)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	attempts, err := retry.Do(ctx, p, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 || calls != 1 {
		t.Fatalf("expected cancellation after first attempt, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestDo_CanceledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	attempts, err := retry.Do(ctx, retry.Default(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 || calls != 0 {
		t.Fatalf("expected no attempts, got attempts=%d calls=%d", attempts, calls)
	}
}
