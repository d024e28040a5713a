// Package retry runs an operation until its result is acceptable, waiting a
// fixed delay between attempts.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrLimitExceeded is returned once every allowed attempt produced a result
// that still asked for a retry.
var ErrLimitExceeded = errors.New("retry limit exceeded")

// Policy bounds a retry chain. MaxAttempts counts retries after the first
// call, so an operation runs at most MaxAttempts+1 times.
type Policy struct {
	Delay       time.Duration
	MaxAttempts int
}

// Do invokes op immediately and again after each Delay for as long as
// shouldRetry accepts the result. Errors from op end the chain unchanged.
// A cancelled ctx abandons the pending wait and returns ctx.Err().
func Do[R any](ctx context.Context, op func(ctx context.Context) (R, error), shouldRetry func(R) bool, policy Policy) (R, error) {
	var zero R
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err != nil {
			return zero, err
		}
		if !shouldRetry(result) {
			return result, nil
		}
		if attempt >= policy.MaxAttempts {
			return zero, errors.Wrapf(ErrLimitExceeded, "gave up after %d attempts", attempt+1)
		}

		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Result is what Go delivers once the chain settles.
type Result[R any] struct {
	Value R
	Err   error
}

// Go runs Do on its own goroutine. The channel receives exactly one Result
// and is then closed.
func Go[R any](ctx context.Context, op func(ctx context.Context) (R, error), shouldRetry func(R) bool, policy Policy) <-chan Result[R] {
	out := make(chan Result[R], 1)
	go func() {
		defer close(out)
		value, err := Do(ctx, op, shouldRetry, policy)
		out <- Result[R]{Value: value, Err: err}
	}()
	return out
}
