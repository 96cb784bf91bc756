package retry

import (
	"context"
	"time"
)

// Policy bounds how often an operation is reattempted and how long to wait
// between attempts. The zero value is not usable; construct via Default or
// literal with both fields set.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// Linear returns a backoff that waits attempt*step before the next try.
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Default is three attempts with linear one-second backoff.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Linear(time.Second),
	}
}

// Do runs op until it succeeds, the policy is exhausted, or ctx is done.
// It returns the number of attempts made and the last error. A nil error
// means op succeeded on the reported attempt.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		last = op(ctx)
		if last == nil {
			return attempt, nil
		}

		if attempt == p.MaxAttempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return p.MaxAttempts, last
}
