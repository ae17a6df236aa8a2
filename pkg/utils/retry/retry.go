// Package retry repeats remote operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetry marks errors worth another attempt.
var ErrRetry = errors.New("retry")

// Retryable wraps err with ErrRetry. nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetry, err)
}

// Policy bounds retries of a remote operation.
type Policy struct {
	// MaxAttempts is the number of calls including the first one.
	MaxAttempts int

	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration

	// Timeout is the deadline of each call. Non-positive value means no deadline.
	Timeout time.Duration
}

// DefaultPolicy: 100 attempts, 1s doubling up to 1 minute, 10 minutes per call.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     100,
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     time.Minute,
		Timeout:         10 * time.Minute,
	}
}

// Interval is the wait before the nth retry, counted from 0.
//
// It is InitialInterval * Multiplier^n, capped by MaxInterval when it is positive.
func (p Policy) Interval(n int) time.Duration {
	d := float64(p.InitialInterval)
	for range n {
		d *= p.Multiplier
		if 0 < p.MaxInterval && float64(p.MaxInterval) <= d {
			return p.MaxInterval
		}
	}
	if 0 < p.MaxInterval && p.MaxInterval < time.Duration(d) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

// WithTimeout derives a context with the per-call deadline of the policy.
func (p Policy) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Timeout)
}

// ExhaustedError is returned when all attempts are failed.
type ExhaustedError struct {
	Attempts int

	// error caused by the last attempt.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do calls f until it returns nil or an error not wrapping ErrRetry, or attempts run out.
//
// The first call is made immediately. Each call gets a context with Policy.Timeout.
//
// It returns the error from f as it is when it is not retryable,
// *ExhaustedError when f keeps asking to retry,
// and ctx.Err() when ctx is done while waiting.
func Do(ctx context.Context, p Policy, f func(context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var last error
	for nth := range attempts {
		if 0 < nth {
			if err := sleep(ctx, p.Interval(nth-1)); err != nil {
				return err
			}
		}
		err := call(ctx, p, f)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRetry) {
			return err
		}
		last = err
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}

func call(ctx context.Context, p Policy, f func(context.Context) error) error {
	cctx, cancel := p.WithTimeout(ctx)
	defer cancel()
	return f(cctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
