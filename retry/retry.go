package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded retry schedule. Factor <= 1 means a fixed delay.
type Policy struct {
	Initial     time.Duration
	Factor      float64
	MaxAttempts int // 0 leaves the bound to the context
}

// Named schedules used across the client.
var (
	// BalanceCheck: exponential from 2s, x2.0, 8 attempts.
	BalanceCheck = Policy{Initial: 2 * time.Second, Factor: 2.0, MaxAttempts: 8}
	// EVMBalanceCheck: exponential from 100s, x2.0, 8 attempts; callers
	// retry only transient network errors.
	EVMBalanceCheck = Policy{Initial: 100 * time.Second, Factor: 2.0, MaxAttempts: 8}
	// SafeResolution: 10 attempts, 500ms apart.
	SafeResolution = Fixed(500*time.Millisecond, 10)
)

// Fixed returns a constant-delay policy.
func Fixed(delay time.Duration, attempts int) Policy {
	return Policy{Initial: delay, Factor: 1, MaxAttempts: attempts}
}

// Exponential returns a policy multiplying the delay by factor each attempt.
func Exponential(initial time.Duration, factor float64, attempts int) Policy {
	return Policy{Initial: initial, Factor: factor, MaxAttempts: attempts}
}

// BackOff builds a fresh cenkalti/backoff schedule for the policy.
func (p Policy) BackOff() backoff.BackOff {
	var b backoff.BackOff
	if p.Factor <= 1 {
		b = backoff.NewConstantBackOff(p.Initial)
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Initial
		eb.Multiplier = p.Factor
		eb.RandomizationFactor = 0
		eb.MaxInterval = time.Duration(math.MaxInt64)
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	}
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return b
}

// Delays lists the waits between attempts, for logging and tests.
// Unbounded policies return nil.
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 0 {
		return nil
	}
	b := p.BackOff()
	var out []time.Duration
	for {
		next := b.NextBackOff()
		if next == backoff.Stop {
			return out
		}
		out = append(out, next)
	}
}

type options struct {
	retryIf func(error) bool
	notify  func(err error, attempt int, next time.Duration)
}

// Option adjusts Do.
type Option func(*options)

// RetryIf limits retries to errors for which fn returns true; any other
// error is returned immediately.
func RetryIf(fn func(error) bool) Option {
	return func(o *options) { o.retryIf = fn }
}

// Notify is called before each wait with the failed attempt number (1-based).
func Notify(fn func(err error, attempt int, next time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// policy runs out of attempts, or ctx is done. It returns the last error.
// Waits are timer-driven.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if o.retryIf != nil && !o.retryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var notify backoff.Notify
	if o.notify != nil {
		notify = func(err error, next time.Duration) { o.notify(err, attempt, next) }
	}
	return backoff.RetryNotify(operation, backoff.WithContext(p.BackOff(), ctx), notify)
}

// IndexerPolling polls at a fixed interval with no attempt bound; the
// caller's index timeout ends it.
func IndexerPolling(interval time.Duration) Policy {
	return Fixed(interval, 0)
}
