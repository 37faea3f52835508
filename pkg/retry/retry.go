package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FatalError stops a retry loop on the first attempt. Malformed records and
// failed publishes are wrapped in it so they go straight to the dead letter
// topic.
type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) IsFatal() bool { return true }
func (e *fatalError) Unwrap() error { return e.err }

func NewFatalError(err error) FatalError {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether any error in the chain classifies itself as fatal.
func IsFatal(err error) bool {
	var fatalErr FatalError
	return errors.As(err, &fatalErr) && fatalErr.IsFatal()
}

// Policy is an exponential schedule. MaxAttempts bounds Retry only; a zero
// MaxElapsedTime means no deadline.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func (p Policy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime
	return exp
}

// Delay is the un-jittered wait after the given attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback calls fn up to MaxAttempts times (3 when unset) and
// reports each failed attempt that will be retried to onRetry.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	b := backoff.WithMaxRetries(backoff.WithContext(policy.backOff(), ctx), uint64(policy.MaxAttempts-1))

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		switch {
		case err == nil:
			return nil
		case IsFatal(err):
			return backoff.Permanent(err)
		}
		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, policy.Delay(attempt))
		}
		return err
	}, b)
}

// Until calls fn until it succeeds, returns a fatal error or ctx is done.
// MaxAttempts is ignored; MaxElapsedTime still bounds the loop when set.
func Until(ctx context.Context, policy Policy, fn func() error) error {
	err := backoff.Retry(func() error {
		err := fn()
		if err != nil && IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy.backOff(), ctx))

	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
