package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-pathfinder/internal/retry"
)

func TestBackoffSchedule(t *testing.T) {
	t.Parallel()

	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 0, expected: 500 * time.Millisecond},
		{attempt: 1, expected: 1 * time.Second},
		{attempt: 2, expected: 2 * time.Second},
		{attempt: 3, expected: 4 * time.Second},
		{attempt: 4, expected: 4 * time.Second}, // capped
		{attempt: 10, expected: 4 * time.Second},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, policy.Backoff(test.attempt), "attempt %d", test.attempt)
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	policy := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}

	calls := 0
	err := retry.Do(context.Background(), policy, "flaky op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	policy := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}

	permanent := errors.New("permanent")
	calls := 0
	err := retry.Do(context.Background(), policy, "doomed op", func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, retry.ErrAttemptsExhausted))
	assert.True(t, errors.Is(err, permanent), "the last failure stays in the error chain")
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnCancellation(t *testing.T) {
	t.Parallel()

	policy := retry.Policy{
		MaxAttempts:    10,
		InitialBackoff: time.Hour, // the wait must be interrupted, not served
		MaxBackoff:     time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- retry.Do(ctx, policy, "cancelled op", func(ctx context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoSingleAttemptFloor(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), retry.Policy{}, "no policy", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
