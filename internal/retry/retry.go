// Package retry implements an exponential backoff schedule: 1s, 2s, 4s, 8s,
// 16s, capped at 60s, up to 5 attempts. No other package in this repository
// calls it: remoteapi retries HTTP requests with its own doRetry loop, and a
// retryable worker failure is reported to the coordinator without being
// retried on this schedule.
package retry

import "time"

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay regardless of attempt count.
	MaxDelay time.Duration
	// MaxAttempts is the maximum number of retry attempts (not counting the
	// initial try).
	MaxAttempts int
}

// Default is the schedule: 1s, 2s, 4s, 8s, 16s, capped at 60s, 5 attempts.
func Default() Policy {
	return Policy{BaseDelay: time.Second, MaxDelay: 60 * time.Second, MaxAttempts: 5}
}

// Next returns the delay before retry attempt number `attempt` (1-indexed:
// attempt 1 is the first retry after the initial failed try). It returns
// false as its second value once attempt exceeds MaxAttempts.
func (p Policy) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > p.MaxAttempts {
		return 0, false
	}

	delay := p.BaseDelay << uint(attempt-1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}

	return delay, true
}

// Exhausted reports whether attempt has used up the policy's retry budget.
func (p Policy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}
