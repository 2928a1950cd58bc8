package tool

import (
	"context"
	"time"
)

// RetryPolicy bounds how the registry retries transient capability failures.
// Only errors classified transient by core.IsTransient are retried; input
// validation failures, missing records and final errors are returned
// immediately.
type RetryPolicy struct {
	// Total attempts including the first call. Values below 1 behave as 1.
	MaxAttempts int
	// Delay before the second attempt
	InitialDelay time.Duration
	// Ceiling for the growing delay
	MaxDelay time.Duration
	// Factor applied to the delay after each failed attempt
	Multiplier float64
}

// DefaultRetryPolicy retries twice after the initial attempt with short
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// wait sleeps for the given delay unless the context is cancelled first.
func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// next returns the delay for the following attempt, capped at MaxDelay.
func (p RetryPolicy) next(delay time.Duration) time.Duration {
	d := time.Duration(float64(delay) * p.Multiplier)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
