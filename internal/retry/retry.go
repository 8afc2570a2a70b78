// Package retry decides what happens to a failed task: retry after a
// backoff delay, or discard once attempts are exhausted. Policies are pure;
// all retry state travels inside the task itself.
package retry

import (
	"errors"
	"time"
)

// ErrMaxAttemptsExceeded signals permanent discard of a task.
var ErrMaxAttemptsExceeded = errors.New("retry: max attempts exceeded")

// BackoffFunc maps a failure count (>= 1) to the delay before the task
// becomes due again. Implementations must be monotonically non-decreasing
// in the failure count, so repeated failures always wait at least as long
// as the previous attempt.
type BackoffFunc func(failureCount int) time.Duration

// Fixed waits the same delay for every retry.
func Fixed(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Linear waits step*failureCount, capped at max. A max of 0 means no cap.
func Linear(step, max time.Duration) BackoffFunc {
	return func(failureCount int) time.Duration {
		if failureCount < 1 {
			failureCount = 1
		}
		d := step * time.Duration(failureCount)
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Exponential doubles the base delay per failure, capped at max. A max of 0
// means no cap; the delay then saturates at the last value that fits in a
// Duration, so high failure counts never wrap back to a short wait.
func Exponential(base, max time.Duration) BackoffFunc {
	return func(failureCount int) time.Duration {
		if failureCount < 1 {
			failureCount = 1
		}
		d := base
		for i := 1; i < failureCount; i++ {
			next := d * 2
			if next < d { // overflow: saturate
				break
			}
			d = next
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Policy bounds how many times a task may be attempted and how long to wait
// between attempts.
type Policy struct {
	// MaxAttempts is the total number of processing attempts a task gets,
	// including the first. Zero or negative means a single attempt with no
	// retries.
	MaxAttempts int
	// Backoff computes the retry delay. Nil defaults to Fixed(0).
	Backoff BackoffFunc
}

// Next is called after a processing attempt fails. failureCount is the
// task's failure count before this failure is recorded. When the task has
// attempts left, Next returns the delay until it should become due again
// (computed from the incremented failure count) and true; otherwise it
// returns false and the task is discarded.
func (p Policy) Next(failureCount int) (time.Duration, bool) {
	if failureCount < 0 {
		failureCount = 0
	}
	if failureCount+1 >= p.MaxAttempts {
		return 0, false
	}
	if p.Backoff == nil {
		return 0, true
	}
	return p.Backoff(failureCount + 1), true
}
