// Package backoff provides delay schedules for retry.
package backoff

import (
	"math"
	"time"
)

// Strategy maps the number of attempts made so far, starting at 1, to the
// delay before the next attempt.
type Strategy func(attempts uint) time.Duration

// Constant waits interval between every attempt.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Exponential waits baseDelay * base^(attempts-1), saturating at the
// largest representable duration.
//
// Exponential(2*time.Second, 3) waits 2s, 6s, 18s, 54s, ...
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}

		delay := float64(baseDelay) * math.Pow(base, float64(attempts-1))
		if delay >= math.MaxInt64 || math.IsInf(delay, 0) || math.IsNaN(delay) {
			return math.MaxInt64
		}
		return time.Duration(delay)
	}
}

// BinaryExponential doubles the delay on each attempt, starting at
// baseDelay.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}
