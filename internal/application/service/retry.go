package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopping-agent/internal/domain/entity"

	"github.com/cenkalti/backoff/v5"
)

var ErrAttemptTimeout = errors.New("attempt timed out")

// RetryPolicy describes how an unreliable external call is retried.
type RetryPolicy struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// AttemptTimeout bounds a single attempt. A timed out attempt is retried
	// like any other failure. Zero leaves attempts unbounded.
	AttemptTimeout time.Duration

	// OnRetry is called before sleeping between two attempts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		AttemptTimeout: 60 * time.Second,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()
	return b
}

// Delays returns the sleep schedule between attempts.
func (p RetryPolicy) Delays() []time.Duration {
	if p.MaxAttempts < 2 {
		return nil
	}
	b := p.backOff()
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := uint(1); i < p.MaxAttempts; i++ {
		delays = append(delays, b.NextBackOff())
	}
	return delays
}

func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Permanent marks an error that must not be retried.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op until it succeeds or the policy is exhausted. Exhaustion is
// reported as entity.ErrRetriesExhausted wrapping the last error; context
// errors of the caller's ctx are returned unchanged. Only MaxAttempts bounds
// the number of tries.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	attempt := 0
	permanent := false
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := runAttempt(ctx, p.AttemptTimeout, op)
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			permanent = true
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(attempt, err, d)
			}
		}),
	)
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if permanent {
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			return zero, perr.Unwrap()
		}
		return zero, err
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", entity.ErrRetriesExhausted, attempt, err)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := op(attemptCtx)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
	}
	return v, err
}
