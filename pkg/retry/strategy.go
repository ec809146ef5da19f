package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-prereq/pkg/retry/backoff"
)

// Strategy decides whether an action should be attempted again after it
// failed with err. Strategies may sleep.
type Strategy func(attempts uint, err error) bool

// Limit caps the total number of attempts, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only allows a retry when err matches one of the provided
// errors, as reported by errors.Is.
func RetriableErrors(retriable ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, target := range retriable {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Context stops retrying once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(uint, error) bool {
		return ctx.Err() == nil
	}
}

// Backoff sleeps before the next attempt for the duration given by strategy,
// capped at maxBackoff.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithJitter(strategy, maxBackoff, 0)
}

// BackoffWithJitter is Backoff with the capped delay randomly spread by
// +/- jitter (a fraction of the delay). A 100ms delay with a jitter of 0.1
// sleeps between 90ms and 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := strategy(attempts)
		if delay > maxBackoff {
			delay = maxBackoff
		}

		if jitter > 0 {
			spread := (2*rand.Float64() - 1) * jitter
			delay = time.Duration(float64(delay) * (1 + spread))
		}

		sleeperImpl.Sleep(delay)
		return true
	}
}

type sleeper interface {
	Sleep(time.Duration)
}

type timeSleeper struct{}

func (timeSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// sleeperImpl is replaced in tests.
var sleeperImpl sleeper = timeSleeper{}
