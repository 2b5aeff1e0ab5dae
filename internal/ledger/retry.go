package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often an atomic unit is re-run after a transient
// conflict. Only conflicts raised before commit are retryable, so a re-run
// never applies a unit twice.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	OnRetry  func()
}

// linearBackOff waits step, 2*step, 3*step... between attempts.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Run calls fn until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. Cancellation between attempts surfaces as a
// ConcurrencyConflict.
func (p RetryPolicy) Run(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: p.Backoff}, uint64(attempts-1)),
		ctx,
	)
	operation := func() error {
		err := fn()
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = func(error, time.Duration) { p.OnRetry() }
	}

	err := backoff.RetryNotify(operation, policy, notify)
	var le *Error
	if err != nil && !errors.As(err, &le) &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return Conflict(err)
	}
	return err
}
