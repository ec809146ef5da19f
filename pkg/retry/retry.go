// Package retry runs actions repeatedly under a set of composable
// strategies. It is used for RPC transport retries and for polling the
// network until a submitted transaction or airdrop lands.
package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retrier retries the provided action.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier that applies the same strategies to every
// action. Without strategies the action is retried in a tight loop until it
// succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{
		strategies: strategies,
	}
}

func (r *retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

// Retry runs action until it succeeds or a strategy vetoes another attempt,
// returning the number of attempts made and the last error.
//
// Strategies run in order and stop at the first veto, so strategies that
// sleep belong at the end.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	for attempt := uint(1); ; attempt++ {
		err := action()
		if err == nil {
			return attempt, nil
		}

		for _, s := range strategies {
			if !s(attempt, err) {
				return attempt, err
			}
		}
	}
}
