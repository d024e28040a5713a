package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counting(calls *int, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		return value, nil
	}
}

func always(string) bool { return true }
func never(string) bool  { return false }

func TestDoStopsWhenResultIsAccepted(t *testing.T) {
	calls := 0
	value, err := Do(context.Background(), counting(&calls, "done"), never, Policy{Delay: time.Hour, MaxAttempts: 5})

	require.NoError(t, err)
	assert.Equal(t, "done", value)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUpAfterLimitPlusOneCalls(t *testing.T) {
	for _, limit := range []int{0, 1, 4} {
		calls := 0
		_, err := Do(context.Background(), counting(&calls, "busy"), always, Policy{Delay: time.Millisecond, MaxAttempts: limit})

		assert.ErrorIs(t, err, ErrLimitExceeded)
		assert.Equal(t, limit+1, calls)
	}
}

func TestDoRetriesUntilAccepted(t *testing.T) {
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	value, err := Do(context.Background(), op, func(n int) bool { return n < 3 }, Policy{Delay: time.Millisecond, MaxAttempts: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, value)
	assert.Equal(t, 3, calls)
}

func TestDoPropagatesOperationErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		return "", boom
	}

	_, err := Do(context.Background(), op, always, Policy{Delay: time.Millisecond, MaxAttempts: 10})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestDoWaitsBetweenAttemptsOnly(t *testing.T) {
	calls := 0
	delay := 20 * time.Millisecond

	start := time.Now()
	_, err := Do(context.Background(), counting(&calls, "busy"), always, Policy{Delay: delay, MaxAttempts: 2})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, int64(elapsed), int64(2*delay))
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	_, err := Do(ctx, counting(&calls, "busy"), always, Policy{Delay: time.Hour, MaxAttempts: 3})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, int64(time.Since(start)), int64(time.Minute))
}

func TestGoDeliversOneResult(t *testing.T) {
	calls := 0
	results := Go(context.Background(), counting(&calls, "ok"), never, Policy{Delay: time.Millisecond})

	result, ok := <-results
	require.True(t, ok)
	require.NoError(t, result.Err)
	assert.Equal(t, "ok", result.Value)

	_, ok = <-results
	assert.False(t, ok, "channel is closed after the result")
}

func TestGoReportsLimitExceeded(t *testing.T) {
	calls := 0
	result := <-Go(context.Background(), counting(&calls, "busy"), always, Policy{Delay: time.Millisecond, MaxAttempts: 2})

	assert.ErrorIs(t, result.Err, ErrLimitExceeded)
	assert.Equal(t, "", result.Value)
	assert.Equal(t, 3, calls)
}
